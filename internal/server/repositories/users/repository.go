// Package users persists user records. Every backend returns
// common.ErrorNotFound for missing users and common.ErrorConflict when an
// email is already taken.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	// Create assigns the ID and timestamps and stores a new user.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Save writes back every mutable field of an existing user.
	Save(ctx context.Context, user *models.User) (*models.User, error)

	// The writes below touch only the fields they name, so concurrent
	// sign-ins and resets on one user cannot undo each other.

	// AppendLoginHistory adds entry and keeps the last models.MaxLoginHistory.
	AppendLoginHistory(ctx context.Context, id string, entry models.LoginHistoryEntry) error
	// SetResetToken replaces any outstanding reset token.
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error
	// ConsumeResetToken stores the new credentials and clears the reset
	// token, provided the user still holds token. Otherwise it returns
	// common.ErrorNotFound.
	ConsumeResetToken(ctx context.Context, id, token, salt, hash string) error
}
