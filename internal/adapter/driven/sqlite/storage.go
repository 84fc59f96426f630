package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// Storage implements driven.StorageBackend (C8) over a SQLite DB.
type Storage struct {
	db *DB
}

var _ driven.StorageBackend = (*Storage)(nil)

// NewStorage wraps an already-opened DB (see Open) as a StorageBackend.
func NewStorage(db *DB) *Storage {
	return &Storage{db: db}
}

// EnsureSchema applies embedded migrations; idempotent.
func (s *Storage) EnsureSchema(_ context.Context) error {
	if err := RunMigrations(s.db.Writer); err != nil {
		return fmt.Errorf("%w: %v", driven.ErrStorageUnavailable, err)
	}
	return nil
}

// SaveEvents inserts events with INSERT OR IGNORE keyed on id, per spec.md
// §4.8's upsert-ignore contract (P1).
func (s *Storage) SaveEvents(ctx context.Context, events []model.ContributionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save_events tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT OR IGNORE INTO events (id, kind, repo_id, user_id, created_at, lines_added, lines_removed, source_host)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, e := range events {
		repo, err := model.ParseRepoID(e.RepoID)
		host := "github.com"
		if err == nil && repo.Host != "" {
			host = repo.Host
		}
		if _, err := tx.ExecContext(ctx, query,
			e.ID, string(e.Kind), e.RepoID, e.UserID, e.CreatedAt.UTC(), e.LinesAdded, e.LinesRemoved, host,
		); err != nil {
			return 0, fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save_events tx: %w", err)
	}
	return len(events), nil
}

// SaveScores upserts scores keyed on (user_id, dimension, window),
// overwriting value and generated_at, per spec.md §4.8.
func (s *Storage) SaveScores(ctx context.Context, scores []model.Score) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save_scores tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO scores (user_id, dimension, value, window, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, dimension, window) DO UPDATE SET value = excluded.value, generated_at = excluded.generated_at
	`

	now := time.Now().UTC()
	for _, sc := range scores {
		window := sc.Window
		if window == "" {
			window = model.WindowAll
		}
		if _, err := tx.ExecContext(ctx, query, sc.SubjectID, sc.Dimension, sc.Value, window, now); err != nil {
			return 0, fmt.Errorf("upserting score %s/%s: %w", sc.SubjectID, sc.Dimension, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save_scores tx: %w", err)
	}
	return len(scores), nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// CacheDB exposes the underlying connection pair so callers can build an
// HTTPCache against the same database without reopening it.
func (s *Storage) CacheDB() *DB {
	return s.db
}
