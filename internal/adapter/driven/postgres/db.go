// Package postgres implements the C8 storage backend and optional C8
// update-quota tier against a relational Postgres server, for deployments
// that outgrow the embedded SQLite backend.
package postgres

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GetDSN resolves the connection string: an explicit value wins, otherwise
// OSSMK_PG_DSN, otherwise DATABASE_URL. Grounded in
// original_source/src/ossmk/storage/postgres.py's get_dsn.
func GetDSN(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v := os.Getenv("OSSMK_PG_DSN"); v != "" {
		return v, nil
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("postgres DSN not provided: set OSSMK_PG_DSN or DATABASE_URL")
}

// DB holds the pgx connection pool used for all query execution.
type DB struct {
	Pool *pgxpool.Pool
	dsn  string
}

// Open connects to dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Pool: pool, dsn: dsn}, nil
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}
