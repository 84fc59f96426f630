package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// setupTestDB connects to a real Postgres instance named by
// OSSMK_TEST_PG_DSN and truncates its tables when the test ends. Skipped
// when unset: unlike the
// SQLite backend, Postgres has no in-process mode to fall back on.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("OSSMK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("OSSMK_TEST_PG_DSN not set; skipping postgres integration test")
	}

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `
			TRUNCATE quota_growth_points, quota_score_snapshots, quota_update_usage, quota_users, scores, events
		`)
		_ = db.Close()
	})

	return db
}

func TestStorage_SaveEventsUpsertIgnoresDuplicateIDs(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "evt-1", Kind: model.KindCommit, RepoID: "github.com/acme/widgets", UserID: "alice", CreatedAt: at},
	}

	n, err := s.SaveEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.SaveEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var count int
	require.NoError(t, db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStorage_SaveScoresUpsertOverwritesValue(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.SaveScores(ctx, []model.Score{{SubjectID: "alice", Dimension: "code", Value: 1.5, Window: model.WindowAll}})
	require.NoError(t, err)

	_, err = s.SaveScores(ctx, []model.Score{{SubjectID: "alice", Dimension: "code", Value: 4.25, Window: model.WindowAll}})
	require.NoError(t, err)

	var value float64
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT value FROM scores WHERE user_id = $1 AND dimension = $2 AND window = $3",
		"alice", "code", model.WindowAll,
	).Scan(&value))
	assert.InDelta(t, 4.25, value, 0.0001)
}

func TestQuotaPolicy_FreeUserHitsManualLimit(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	q := NewQuotaPolicy(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, q.UpsertUser(ctx, "user-1", "octocat", false))

	for i := 0; i < freeManualLimit; i++ {
		status, err := q.CheckQuota(ctx, "user-1", driven.UpdateManual)
		require.NoError(t, err)
		assert.True(t, status.Allowed)
		require.NoError(t, q.RecordUsage(ctx, "user-1", driven.UpdateManual))
	}

	status, err := q.CheckQuota(ctx, "user-1", driven.UpdateManual)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, freeManualLimit, status.Used)
}

func TestQuotaPolicy_PaidUserIsUnlimited(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	q := NewQuotaPolicy(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, q.UpsertUser(ctx, "user-2", "hubot", true))

	for i := 0; i < freeManualLimit+5; i++ {
		require.NoError(t, q.RecordUsage(ctx, "user-2", driven.UpdateManual))
	}

	status, err := q.CheckQuota(ctx, "user-2", driven.UpdateManual)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

func TestQuotaPolicy_GrowthPointsAwardedOnPositiveDelta(t *testing.T) {
	db := setupTestDB(t)
	s := NewStorage(db)
	q := NewQuotaPolicy(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, q.UpsertUser(ctx, "user-3", "tatercat", false))

	prev, next, err := q.RecordSnapshot(ctx, "user-3", 10.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, prev)
	assert.Equal(t, 10.0, next)

	prev, next, err = q.RecordSnapshot(ctx, "user-3", 16.5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, prev)
	assert.Equal(t, 16.5, next)

	delta := next - prev
	require.NoError(t, q.AwardGrowthPoints(ctx, "user-3", delta, prev, next))

	var points float64
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT points FROM quota_growth_points WHERE user_id = $1", "user-3",
	).Scan(&points))
	assert.InDelta(t, 6.5, points, 0.0001)
}
