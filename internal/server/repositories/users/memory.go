package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Records are copied on the
// way in and out, so callers never share state with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) FindByResetToken(_ context.Context, token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == token {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrorConflict
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID

	return user, nil
}

func (r *MemoryRepository) Save(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[user.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if old.Email != user.Email {
		if _, taken := r.byEmail[user.Email]; taken {
			return nil, common.ErrorConflict
		}
		delete(r.byEmail, old.Email)
		r.byEmail[user.Email] = user.ID
	}

	user.UpdatedAt = r.now().UTC()
	r.byID[user.ID] = user.Clone()

	return user, nil
}

func (r *MemoryRepository) AppendLoginHistory(_ context.Context, id string, entry models.LoginHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.AppendLoginHistory(entry)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) SetResetToken(_ context.Context, id, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	e := expires.UTC()
	u.ResetPasswordToken = &token
	u.ResetPasswordExpires = &e
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) ConsumeResetToken(_ context.Context, id, token, salt, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || u.ResetPasswordToken == nil || *u.ResetPasswordToken != token {
		return common.ErrorNotFound
	}
	u.Salt = salt
	u.Hash = hash
	u.ClearResetToken()
	u.UpdatedAt = r.now().UTC()
	return nil
}
