package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository stores users in the users table. Login history is kept
// as a JSONB array.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, name, email, salt, hash, login_history,
		reset_password_token, reset_password_expires, created_at, updated_at
		FROM users`

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE reset_password_token = $1`, token)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	history, err := marshalHistory(user.LoginHistory)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, user.Email).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if exists {
			return common.ErrorConflict
		}

		query :=
			`INSERT INTO users (name, email, salt, hash, login_history)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`

		err := tx.QueryRowContext(ctx, query,
			user.Name, user.Email, user.Salt, user.Hash, history).
			Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	history, err := marshalHistory(user.LoginHistory)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE users SET name = $2, email = $3, salt = $4, hash = $5, login_history = $6,
			reset_password_token = $7, reset_password_expires = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.Salt, user.Hash, history,
		nullable(user.ResetPasswordToken), nullable(user.ResetPasswordExpires)).
		Scan(&user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

// AppendLoginHistory appends entry in SQL and trims the array to its newest
// entries, so the rest of the row is never rewritten.
func (r *PostgresRepository) AppendLoginHistory(ctx context.Context, id string, entry models.LoginHistoryEntry) error {
	history, err := marshalHistory([]models.LoginHistoryEntry{entry})
	if err != nil {
		return err
	}

	query :=
		`UPDATE users SET login_history = (
			SELECT COALESCE(jsonb_agg(e ORDER BY n), '[]'::jsonb)
			FROM (
				SELECT e, n
				FROM jsonb_array_elements(login_history || $2::jsonb) WITH ORDINALITY AS h(e, n)
				ORDER BY n DESC
				LIMIT $3
			) newest
		), updated_at = now()
		 WHERE id = $1`

	return execOne(ctx, r.db, query, id, history, models.MaxLoginHistory)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	query :=
		`UPDATE users SET reset_password_token = $2, reset_password_expires = $3, updated_at = now()
		 WHERE id = $1`

	return execOne(ctx, r.db, query, id, token, expires.UTC())
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, id, token, salt, hash string) error {
	query :=
		`UPDATE users SET salt = $3, hash = $4,
			reset_password_token = NULL, reset_password_expires = NULL, updated_at = now()
		 WHERE id = $1 AND reset_password_token = $2`

	return execOne(ctx, r.db, query, id, token, salt, hash)
}

// execOne runs an update that must hit exactly one row.
func execOne(ctx context.Context, db dbx.DBTX, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func findOne(ctx context.Context, db dbx.DBTX, query string, arg any) (*models.User, error) {
	var (
		u       models.User
		history []byte
		token   sql.NullString
		expires sql.NullTime
	)

	err := db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.Salt, &u.Hash, &history,
		&token, &expires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &u.LoginHistory); err != nil {
			return nil, fmt.Errorf("decode login history: %w", err)
		}
	}
	if token.Valid {
		t := token.String
		u.ResetPasswordToken = &t
	}
	if expires.Valid {
		e := expires.Time.UTC()
		u.ResetPasswordExpires = &e
	}

	return &u, nil
}

// mapError converts driver errors into the repository sentinels. A malformed
// UUID can never match a row, so it is reported as not found.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return common.ErrorConflict
		case pgerrcode.InvalidTextRepresentation:
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func marshalHistory(h []models.LoginHistoryEntry) ([]byte, error) {
	if h == nil {
		h = []models.LoginHistoryEntry{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode login history: %w", err)
	}
	return b, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
