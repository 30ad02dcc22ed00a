package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository exercises the behavior every backend must share.
func testRepository(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create then find", func(t *testing.T) {
		r := newRepo(t)

		u, err := r.Create(ctx, &models.User{Name: "alice", Email: "a@x.com", Salt: "s", Hash: "h"})
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())

		byEmail, err := r.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "h", byEmail.Hash)

		byID, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", byID.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.Create(ctx, &models.User{Email: "dup@x.com"})
		require.NoError(t, err)

		_, err = r.Create(ctx, &models.User{Email: "dup@x.com"})
		assert.True(t, errors.Is(err, common.ErrorConflict), "got %v", err)
	})

	t.Run("missing", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = r.FindByID(ctx, "nobody")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = r.FindByResetToken(ctx, "nothing")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = r.Save(ctx, &models.User{ID: "nobody"})
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("save persists history and reset token", func(t *testing.T) {
		r := newRepo(t)

		u, err := r.Create(ctx, &models.User{Email: "b@x.com"})
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		u.AppendLoginHistory(models.LoginHistoryEntry{Timestamp: now, IP: "::1", UserAgent: "test", Status: models.LoginSuccess})
		u.SetResetToken("reset-1", now)
		_, err = r.Save(ctx, u)
		require.NoError(t, err)

		got, err := r.FindByResetToken(ctx, "reset-1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		require.Len(t, got.LoginHistory, 1)
		assert.Equal(t, models.LoginSuccess, got.LoginHistory[0].Status)
		require.NotNil(t, got.ResetPasswordExpires)
		assert.True(t, got.ResetPasswordExpires.Equal(now.Add(models.ResetTokenTTL)))

		got.ClearResetToken()
		_, err = r.Save(ctx, got)
		require.NoError(t, err)

		_, err = r.FindByResetToken(ctx, "reset-1")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		again, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, again.ResetPasswordToken)
		assert.Nil(t, again.ResetPasswordExpires)
	})

	t.Run("append login history keeps newest and leaves credentials", func(t *testing.T) {
		r := newRepo(t)

		u, err := r.Create(ctx, &models.User{Email: "c@x.com", Salt: "s1", Hash: "h1"})
		require.NoError(t, err)

		base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < models.MaxLoginHistory+2; i++ {
			require.NoError(t, r.AppendLoginHistory(ctx, u.ID, models.LoginHistoryEntry{
				Timestamp: base.Add(time.Duration(i) * time.Minute), IP: "::1", Status: models.LoginFailed,
			}))
		}

		got, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, got.LoginHistory, models.MaxLoginHistory)
		assert.True(t, got.LoginHistory[0].Timestamp.Equal(base.Add(2*time.Minute)))
		assert.True(t, got.LoginHistory[models.MaxLoginHistory-1].Timestamp.Equal(base.Add(11*time.Minute)))
		assert.Equal(t, "h1", got.Hash)

		assert.ErrorIs(t, r.AppendLoginHistory(ctx, "nobody", models.LoginHistoryEntry{}), common.ErrorNotFound)
	})

	t.Run("reset token is consumed once", func(t *testing.T) {
		r := newRepo(t)

		u, err := r.Create(ctx, &models.User{Email: "d@x.com", Salt: "s1", Hash: "h1"})
		require.NoError(t, err)

		expires := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, r.SetResetToken(ctx, u.ID, "tok-1", expires))
		require.NoError(t, r.SetResetToken(ctx, u.ID, "tok-2", expires))

		_, err = r.FindByResetToken(ctx, "tok-1")
		assert.ErrorIs(t, err, common.ErrorNotFound, "a new token replaces the old one")

		assert.ErrorIs(t, r.ConsumeResetToken(ctx, u.ID, "tok-1", "s2", "h2"), common.ErrorNotFound)
		require.NoError(t, r.ConsumeResetToken(ctx, u.ID, "tok-2", "s2", "h2"))
		assert.ErrorIs(t, r.ConsumeResetToken(ctx, u.ID, "tok-2", "s3", "h3"), common.ErrorNotFound)

		got, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "s2", got.Salt)
		assert.Equal(t, "h2", got.Hash)
		assert.Nil(t, got.ResetPasswordToken)
		assert.Nil(t, got.ResetPasswordExpires)

		assert.ErrorIs(t, r.SetResetToken(ctx, "nobody", "x", expires), common.ErrorNotFound)
	})
}
