package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// Storage implements driven.StorageBackend (C8) over a Postgres database,
// grounded in original_source/src/ossmk/storage/postgres.py's
// ensure_schema/save_events/save_scores.
type Storage struct {
	db *DB
}

var _ driven.StorageBackend = (*Storage)(nil)

// NewStorage wraps an already-opened DB as a StorageBackend.
func NewStorage(db *DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) EnsureSchema(_ context.Context) error {
	if err := RunMigrations(s.db.dsn); err != nil {
		return fmt.Errorf("%w: %v", driven.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Storage) SaveEvents(ctx context.Context, events []model.ContributionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO events (id, kind, repo_id, user_id, created_at, lines_added, lines_removed, source_host)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	for _, e := range events {
		repo, err := model.ParseRepoID(e.RepoID)
		host := "github.com"
		if err == nil && repo.Host != "" {
			host = repo.Host
		}
		batch.Queue(query, e.ID, string(e.Kind), e.RepoID, e.UserID, e.CreatedAt.UTC(), e.LinesAdded, e.LinesRemoved, host)
	}

	br := s.db.Pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for range events {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("inserting event: %w", err)
		}
	}
	return len(events), nil
}

func (s *Storage) SaveScores(ctx context.Context, scores []model.Score) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO scores (user_id, dimension, value, window, generated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, dimension, window) DO UPDATE SET
			value = EXCLUDED.value,
			generated_at = now()
	`
	for _, sc := range scores {
		window := sc.Window
		if window == "" {
			window = model.WindowAll
		}
		batch.Queue(query, sc.SubjectID, sc.Dimension, sc.Value, window)
	}

	br := s.db.Pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for range scores {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("upserting score: %w", err)
		}
	}
	return len(scores), nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// QuotaDB exposes the underlying connection pool so callers can construct a
// QuotaPolicy against the same database without reopening it. Storage
// itself has no quota-policy dependency; this is purely a wiring seam for
// cmd/ossmk, which only has a driven.StorageBackend in hand.
func (s *Storage) QuotaDB() *DB {
	return s.db
}
