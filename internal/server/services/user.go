// Package services contains server-side business logic. This file implements
// UserService: sign-up, sign-in, access token renewal, profile lookup and
// the password reset flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/samber/oops"
)

// Response codes and client-facing messages.
const (
	CodeUserCreated          = "USER_CREATED"
	CodePasswordResetSuccess = "PASSWORD_RESET_SUCCESS"

	MsgUserCreated         = "User created successfully."
	MsgPasswordsDoNotMatch = "Passwords do not match."
	MsgEmailExists         = "Email already exists."
	MsgResetEmailSent      = "Password reset email sent if the email exists."
	MsgPasswordReset       = "Password reset successful."
	MsgResetTokenInvalid   = "Password reset token is invalid or has expired."
	MsgEmailSendFailed     = "Error sending email."
)

// ResetTokenSize is the number of random bytes in a reset token.
const ResetTokenSize = 20

const resetPasswordPathPrefix = "/reset-password/"

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer interface {
	IssueAccess(p auth.Payload) (string, error)
	IssueRefresh(p auth.Payload) (string, error)
	Verify(token string, kind auth.Kind) (*auth.Payload, error)
}

type SignupInput struct {
	Email                string
	Name                 string
	Password             string
	PasswordConfirmation string
}

type SigninInput struct {
	Email    string
	Password string
}

type ResetPasswordInput struct {
	Password             string
	PasswordConfirmation string
}

// ClientInfo describes where a sign-in attempt came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// DoneResponse acknowledges an operation that returns no data.
type DoneResponse struct {
	Done    bool   `json:"done"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SigninResult carries both tokens. The transport decides where each goes;
// the refresh token must never be written into a response body.
type SigninResult struct {
	AccessToken  string
	RefreshToken string
	Email        string
}

type UserService struct {
	users       users.Repository
	tokens      TokenIssuer
	sender      notify.Sender
	frontendURL string
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewUserService wires the service. m may be nil.
func NewUserService(repo users.Repository, tokens TokenIssuer, sender notify.Sender, cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *UserService {
	return &UserService{
		users:       repo,
		tokens:      tokens,
		sender:      sender,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// Signup registers a new account. No tokens are issued.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*DoneResponse, error) {
	if in.Password != in.PasswordConfirmation {
		s.metrics.Auth("signup", metrics.OutcomeFailure)
		return nil, common.NewError(common.ErrorBadRequest, MsgPasswordsDoNotMatch)
	}

	email := normalizeEmail(in.Email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.metrics.Auth("signup", metrics.OutcomeFailure)
		return nil, common.NewError(common.ErrorConflict, MsgEmailExists)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.internal(ctx, "signup", "find user by email", err)
	}

	user := &models.User{Name: strings.TrimSpace(in.Name), Email: email}
	if err := password.SetPassword(user, in.Password); err != nil {
		return nil, s.internal(ctx, "signup", "hash password", err)
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.metrics.Auth("signup", metrics.OutcomeFailure)
			return nil, common.NewError(common.ErrorConflict, MsgEmailExists)
		}
		return nil, s.internal(ctx, "signup", "create user", err)
	}

	s.metrics.Auth("signup", metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user signed up", "user_id", user.ID)

	return &DoneResponse{Done: true, Code: CodeUserCreated, Message: MsgUserCreated}, nil
}

// Signin checks the credentials, records the attempt in the user's login
// history and issues a token pair. Unknown emails and wrong passwords yield
// the same common.ErrorUnauthorized.
func (s *UserService) Signin(ctx context.Context, in SigninInput, client ClientInfo) (*SigninResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			password.Burn(in.Password)
			s.metrics.Auth("signin", metrics.OutcomeFailure)
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internal(ctx, "signin", "find user by email", err)
	}

	if !password.ValidPassword(user, in.Password) {
		s.recordLogin(ctx, user, client, models.LoginFailed)
		s.metrics.Auth("signin", metrics.OutcomeFailure)
		return nil, common.ErrorUnauthorized
	}

	s.recordLogin(ctx, user, client, models.LoginSuccess)

	payload := auth.Payload{UserID: user.ID, Email: user.Email}

	access, err := s.tokens.IssueAccess(payload)
	if err != nil {
		return nil, s.internal(ctx, "signin", "issue access token", err)
	}
	refresh, err := s.tokens.IssueRefresh(payload)
	if err != nil {
		return nil, s.internal(ctx, "signin", "issue refresh token", err)
	}

	s.metrics.Auth("signin", metrics.OutcomeSuccess)

	return &SigninResult{AccessToken: access, RefreshToken: refresh, Email: user.Email}, nil
}

// recordLogin appends an attempt to the user's history. Only the history is
// written, so a reset finishing during the sign-in is never rolled back. A
// failed write is logged and does not change the outcome of the sign-in.
func (s *UserService) recordLogin(ctx context.Context, user *models.User, client ClientInfo, status models.LoginStatus) {
	entry := models.LoginHistoryEntry{
		Timestamp: s.now().UTC(),
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    status,
	}

	if err := s.users.AppendLoginHistory(ctx, user.ID, entry); err != nil {
		s.logger.Warn(ctx, "failed to save login history",
			append([]any{"user_id", user.ID, "status", status}, logging.ErrorAttrs(err)...)...)
		return
	}
	user.AppendLoginHistory(entry)
}

// RefreshToken exchanges a valid refresh token for a new access token with
// the same identity. The refresh token itself is neither rotated nor extended.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		s.metrics.Auth("refresh", metrics.OutcomeFailure)
		return "", common.ErrorUnauthorized
	}

	payload, err := s.tokens.Verify(refreshToken, auth.Refresh)
	if err != nil {
		s.logger.Debug(ctx, "refresh token rejected", logging.ErrorAttrs(err)...)
		s.metrics.Auth("refresh", metrics.OutcomeFailure)
		return "", common.ErrorUnauthorized
	}

	access, err := s.tokens.IssueAccess(*payload)
	if err != nil {
		return "", s.internal(ctx, "refresh", "issue access token", err)
	}

	s.metrics.Auth("refresh", metrics.OutcomeSuccess)
	return access, nil
}

// GetProfile returns the client-visible projection of the user.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "profile", "find user by id", err)
	}
	return user.Profile(), nil
}

// ForgetPassword starts the reset flow for email. The response is the same
// whether or not the account exists.
func (s *UserService) ForgetPassword(ctx context.Context, email string) (*DoneResponse, error) {
	done := &DoneResponse{Done: true, Code: CodePasswordResetSuccess, Message: MsgResetEmailSent}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Auth("forget_password", metrics.OutcomeSuccess)
			return done, nil
		}
		return nil, s.internal(ctx, "forget_password", "find user by email", err)
	}

	token, err := common.MakeRandHexString(ResetTokenSize)
	if err != nil {
		return nil, s.internal(ctx, "forget_password", "generate reset token", err)
	}

	user.SetResetToken(token, s.now())
	if err := s.users.SetResetToken(ctx, user.ID, token, *user.ResetPasswordExpires); err != nil {
		return nil, s.internal(ctx, "forget_password", "save reset token", err)
	}

	msg := notify.ResetPasswordMessage(user.Email, s.frontendURL+resetPasswordPathPrefix+token)
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.Email("reset_password", metrics.OutcomeError)
		s.logger.Error(ctx, "failed to send reset email",
			append([]any{"user_id", user.ID}, logging.ErrorAttrs(err)...)...)
		return nil, common.NewError(common.ErrorInternal, MsgEmailSendFailed)
	}

	s.metrics.Email("reset_password", metrics.OutcomeSuccess)
	s.metrics.Auth("forget_password", metrics.OutcomeSuccess)

	return done, nil
}

// ResetPassword replaces the password of the user holding token and
// invalidates the token.
func (s *UserService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (*DoneResponse, error) {
	invalid := common.NewError(common.ErrorNotFound, MsgResetTokenInvalid)

	if token == "" {
		s.metrics.Auth("reset_password", metrics.OutcomeFailure)
		return nil, invalid
	}

	user, err := s.users.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Auth("reset_password", metrics.OutcomeFailure)
			return nil, invalid
		}
		return nil, s.internal(ctx, "reset_password", "find user by reset token", err)
	}

	if !user.ResetTokenValid(s.now()) {
		s.metrics.Auth("reset_password", metrics.OutcomeFailure)
		return nil, invalid
	}

	if in.Password != in.PasswordConfirmation {
		s.metrics.Auth("reset_password", metrics.OutcomeFailure)
		return nil, common.NewError(common.ErrorBadRequest, MsgPasswordsDoNotMatch)
	}

	if err := password.SetPassword(user, in.Password); err != nil {
		return nil, s.internal(ctx, "reset_password", "hash password", err)
	}

	// Consuming checks the token again in the store, so two resets racing
	// on one token cannot both succeed.
	if err := s.users.ConsumeResetToken(ctx, user.ID, token, user.Salt, user.Hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Auth("reset_password", metrics.OutcomeFailure)
			return nil, invalid
		}
		return nil, s.internal(ctx, "reset_password", "store new password", err)
	}
	user.ClearResetToken()

	s.metrics.Auth("reset_password", metrics.OutcomeSuccess)
	s.logger.Info(ctx, "password reset", "user_id", user.ID)

	return &DoneResponse{Done: true, Code: CodePasswordResetSuccess, Message: MsgPasswordReset}, nil
}

// internal wraps an unexpected failure, logs it and counts it. The result
// matches common.ErrorInternal before any kind carried by err, so a store
// sentinel such as common.ErrorNotFound is still reported as internal.
func (s *UserService) internal(ctx context.Context, operation, step string, err error) error {
	wrapped := oops.Code("AUTH_INTERNAL").
		With("operation", operation).
		With("step", step).
		Wrap(fmt.Errorf("%w: %w", common.NewError(common.ErrorInternal, ""), err))

	s.metrics.Auth(operation, metrics.OutcomeError)
	s.logger.Error(ctx, "auth operation failed", logging.ErrorAttrs(wrapped)...)

	return wrapped
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
