// Package notify delivers outbound messages to users. Only password reset
// links are sent today.
package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Message is a plain-text message to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResetPasswordSubject is the subject line of reset emails.
const ResetPasswordSubject = "Password Reset"

// ResetPasswordMessage builds the reset email carrying link.
func ResetPasswordMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: ResetPasswordSubject,
		Body: fmt.Sprintf("You are receiving this because you (or someone else) have requested the reset of the password for your account.\n\n"+
			" Please click on the following link, or paste this into your browser to complete the process within one hour of receiving it:\n\n"+
			" %s\n\n"+
			" If you did not request this, please ignore this email and your password will remain unchanged.\n", link),
	}
}

// LogSender writes messages to the log instead of delivering them.
// It is used when no SMTP account is configured.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email not sent: no SMTP account configured",
		"to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
