package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(id string, kind model.EventKind, repo, user string, at time.Time) model.ContributionEvent {
	return model.ContributionEvent{
		ID:        id,
		Kind:      kind,
		RepoID:    repo,
		UserID:    user,
		CreatedAt: at,
	}
}

func TestStorage_EnsureSchemaIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()

	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))
}

func TestStorage_SaveEventsUpsertIgnoresDuplicateIDs(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		makeEvent("evt-1", model.KindCommit, "github.com/acme/widgets", "alice", at),
	}

	n, err := s.SaveEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-ingest of the same id must be a no-op for stored state, even if the
	// presented count still reflects what was handed in.
	n, err = s.SaveEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var count int
	require.NoError(t, db.Reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 1, count, "duplicate id must not produce a second row")
}

func TestStorage_SaveEventsEmptyIsNoop(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	n, err := s.SaveEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStorage_SaveScoresUpsertOverwritesValue(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	first := []model.Score{{SubjectID: "alice", Dimension: "code", Value: 1.5, Window: model.WindowAll}}
	n, err := s.SaveScores(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second := []model.Score{{SubjectID: "alice", Dimension: "code", Value: 4.25, Window: model.WindowAll}}
	n, err = s.SaveScores(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var value float64
	var rowCount int
	require.NoError(t, db.Reader.QueryRowContext(ctx,
		"SELECT value FROM scores WHERE user_id = ? AND dimension = ? AND window = ?",
		"alice", "code", model.WindowAll,
	).Scan(&value))
	assert.InDelta(t, 4.25, value, 0.0001)

	require.NoError(t, db.Reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM scores").Scan(&rowCount))
	assert.Equal(t, 1, rowCount, "upsert on conflict must not add a second row")
}

func TestStorage_SaveScoresDefaultsMissingWindow(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	n, err := s.SaveScores(ctx, []model.Score{{SubjectID: "bob", Dimension: "review", Value: 0.6}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var window string
	require.NoError(t, db.Reader.QueryRowContext(ctx,
		"SELECT window FROM scores WHERE user_id = ? AND dimension = ?", "bob", "review",
	).Scan(&window))
	assert.Equal(t, model.WindowAll, window)
}
