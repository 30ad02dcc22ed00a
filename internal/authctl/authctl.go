// Package authctl implements the operator tool that works directly against
// the credential store: printing a user's profile and setting a password
// without the email reset flow.
package authctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"golang.org/x/term"
)

var (
	ErrUsage            = errors.New("usage: authctl <profile|set-password> -email <address>")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = errors.New("password must be at least 8 characters and mix lower and upper case letters, digits and symbols")
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type Tool struct {
	users users.Repository
	out   io.Writer
}

func New(repo users.Repository, out io.Writer) *Tool {
	return &Tool{users: repo, out: out}
}

// Run executes the command named by args[0].
func (t *Tool) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	var email string
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&email, "email", "", "account email")
	if err := flagx.ParseKnown(fs, args[1:]); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrUsage
	}

	switch args[0] {
	case "profile":
		return t.Profile(ctx, email)
	case "set-password":
		return t.SetPassword(ctx, email)
	default:
		return ErrUsage
	}
}

// Profile prints the client-visible profile of the account as JSON.
func (t *Tool) Profile(ctx context.Context, email string) error {
	u, err := t.find(ctx, email)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(t.out)
	enc.SetIndent("", "  ")
	return enc.Encode(u.Profile())
}

// SetPassword prompts twice for a new password, stores it and invalidates
// any outstanding reset token.
func (t *Tool) SetPassword(ctx context.Context, email string) error {
	u, err := t.find(ctx, email)
	if err != nil {
		return err
	}

	pw, err := t.prompt("New password: ")
	if err != nil {
		return err
	}
	confirm, err := t.prompt("Confirm password: ")
	if err != nil {
		return err
	}
	if pw != confirm {
		return ErrPasswordMismatch
	}
	if !password.IsStrong(pw) {
		return ErrWeakPassword
	}

	if err := password.SetPassword(u, pw); err != nil {
		return err
	}
	u.ClearResetToken()

	if _, err := t.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	_, err = fmt.Fprintf(t.out, "password updated for %s\n", u.Email)
	return err
}

func (t *Tool) find(ctx context.Context, email string) (*models.User, error) {
	u, err := t.users.FindByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("user %s not found", email)
	}
	return u, err
}

func (t *Tool) prompt(label string) (string, error) {
	if _, err := fmt.Fprint(t.out, label); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
