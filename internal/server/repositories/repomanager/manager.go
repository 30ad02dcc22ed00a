// Package repomanager opens the configured credential store and hands out
// its repositories. The backend is chosen by the DSN scheme.
package repomanager

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/samber/oops"
)

type RepositoryManager interface {
	// RunMigrations brings the schema (or indexes) up to date.
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// New opens a store for dsn:
//
//	postgres://… or postgresql://…   PostgreSQL via pgx
//	mongodb://… or mongodb+srv://…   MongoDB
//	memory                           process memory, lost on exit
func New(ctx context.Context, dsn string) (RepositoryManager, error) {
	scheme, _, _ := strings.Cut(dsn, "://")

	switch strings.ToLower(scheme) {
	case "memory":
		return NewMemoryRepositoryManager(), nil
	case "postgres", "postgresql":
		db, err := sqlOpen("pgx", dsn)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("backend", "postgres").Wrap(err)
		}
		return NewPostgresRepositoryManager(db), nil
	case "mongodb", "mongodb+srv":
		m, err := NewMongoRepositoryManager(ctx, dsn)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("backend", "mongodb").Wrap(err)
		}
		return m, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("scheme", scheme).Errorf("unsupported database DSN scheme %q", scheme)
	}
}
