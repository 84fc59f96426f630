// Package storage dispatches a DSN string to the SQLite or Postgres
// StorageBackend implementation, per spec.md §4.8: "postgres(ql)://..." goes
// to the relational-server backend, "sqlite:///..." (including
// "sqlite:///:memory:") to the embedded backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ossmk/ossmk/internal/adapter/driven/postgres"
	"github.com/ossmk/ossmk/internal/adapter/driven/sqlite"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// Open resolves dsn's scheme and returns the matching StorageBackend. The
// caller owns the returned backend and must Close it.
func Open(ctx context.Context, dsn string) (driven.StorageBackend, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:///"):
		path := strings.TrimPrefix(dsn, "sqlite:///")
		if path == "" {
			return nil, fmt.Errorf("sqlite dsn %q missing a path after sqlite:///", dsn)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", driven.ErrStorageUnavailable, err)
		}
		return sqlite.NewStorage(db), nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", driven.ErrStorageUnavailable, err)
		}
		return postgres.NewStorage(db), nil

	default:
		return nil, fmt.Errorf("unrecognized storage dsn %q: expected sqlite:/// or postgres(ql)://", dsn)
	}
}
