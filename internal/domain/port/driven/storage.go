package driven

import (
	"context"
	"errors"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// ErrStorageUnavailable is returned by Open/EnsureSchema when the backing
// store cannot be reached. Per spec.md §7 this is fatal — callers decide
// whether to retry or abort.
var ErrStorageUnavailable = errors.New("storage backend unavailable")

// StorageBackend is the driven port for C8: an idempotent schema plus
// upsert-only persistence of events and scores. Implementations are
// selected by the DSN scheme (see internal/adapter/driven/storage).
type StorageBackend interface {
	// EnsureSchema creates the backend's tables (events and scores in both
	// backends; http_cache in SQLite, the quota tables in Postgres) if they
	// do not already exist. Safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// SaveEvents inserts events with ON CONFLICT(id) DO NOTHING, returning
	// the number of rows presented (not necessarily the number newly
	// inserted — re-ingest is an upsert-ignore).
	SaveEvents(ctx context.Context, events []model.ContributionEvent) (int, error)

	// SaveScores upserts scores keyed on (user_id, dimension, window),
	// overwriting value and bumping generated_at.
	SaveScores(ctx context.Context, scores []model.Score) (int, error)

	Close() error
}
