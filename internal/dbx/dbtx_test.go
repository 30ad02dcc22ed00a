package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errEmailTaken = errors.New("email taken")

func openUsersDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		login_history TEXT NOT NULL DEFAULT '[]'
	)`)
	require.NoError(t, err)
	return db
}

// createUser mirrors the check-then-insert done by the users repository.
func createUser(ctx context.Context, db *sql.DB, id, email string) error {
	return WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return errEmailTaken
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (?, ?)`, id, email)
		return err
	})
}

func emails(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT email FROM users ORDER BY email`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		require.NoError(t, rows.Scan(&e))
		out = append(out, e)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestWithTx_Commit(t *testing.T) {
	db := openUsersDB(t)
	ctx := context.Background()

	require.NoError(t, createUser(ctx, db, "u1", "a@b.co"))
	require.NoError(t, createUser(ctx, db, "u2", "c@d.co"))

	assert.Equal(t, []string{"a@b.co", "c@d.co"}, emails(t, db))
}

func TestWithTx_ErrorFromFnRollsBack(t *testing.T) {
	db := openUsersDB(t)
	ctx := context.Background()
	require.NoError(t, createUser(ctx, db, "u1", "a@b.co"))

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET login_history = '[{"status":"FAILED"}]' WHERE id = 'u1'`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('u2', 'a@b.co')`)
		return err
	})
	require.Error(t, err)

	var history string
	require.NoError(t, db.QueryRow(`SELECT login_history FROM users WHERE id = 'u1'`).Scan(&history))
	assert.Equal(t, "[]", history)
}

func TestWithTx_DuplicateDetected(t *testing.T) {
	db := openUsersDB(t)
	ctx := context.Background()
	require.NoError(t, createUser(ctx, db, "u1", "a@b.co"))

	err := createUser(ctx, db, "u2", "a@b.co")

	assert.ErrorIs(t, err, errEmailTaken)
	assert.Equal(t, []string{"a@b.co"}, emails(t, db))
}

func TestWithTx_ConstraintViolationRollsBack(t *testing.T) {
	db := openUsersDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('u1', 'a@b.co')`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('u1', 'x@y.z')`)
		return err
	})

	require.Error(t, err)
	assert.Empty(t, emails(t, db))
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openUsersDB(t)

	assert.PanicsWithValue(t, "hash failed", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('u1', 'a@b.co')`)
			require.NoError(t, err)
			panic("hash failed")
		})
	})
	assert.Empty(t, emails(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openUsersDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}
