package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossmk/ossmk/internal/adapter/driven/sqlite"
	"github.com/ossmk/ossmk/internal/application"
	"github.com/ossmk/ossmk/internal/core/rules"
	"github.com/ossmk/ossmk/internal/core/score"
	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

type fakeFetcher struct {
	events   []model.ContributionEvent
	warnings []string
	err      error
}

func (f *fakeFetcher) FetchRepoIssuesAndPRs(context.Context, string) ([]model.ContributionEvent, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchRepoCommits(context.Context, string, string) ([]model.ContributionEvent, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchRepoPRReviews(context.Context, string, int) ([]model.ContributionEvent, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchUserRepos(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchUserContributions(context.Context, string, int, string) ([]model.ContributionEvent, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.events, f.warnings, nil
}

type fakeQuota struct {
	allowed bool
	used    []driven.UpdateKind
}

func (q *fakeQuota) CheckQuota(context.Context, string, driven.UpdateKind) (driven.QuotaStatus, error) {
	return driven.QuotaStatus{Allowed: q.allowed}, nil
}

func (q *fakeQuota) RecordUsage(_ context.Context, _ string, kind driven.UpdateKind) error {
	q.used = append(q.used, kind)
	return nil
}

func newStorage(t *testing.T) driven.StorageBackend {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := sqlite.NewStorage(db)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestAnalyze_FetchesScoresAndPersists(t *testing.T) {
	at := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{events: []model.ContributionEvent{
		{ID: "e1", Kind: model.KindCommit, RepoID: "github.com/acme/widgets", UserID: "alice", CreatedAt: at},
	}}
	storage := newStorage(t)
	svc := application.NewAnalyzeService(fetcher, storage)

	result, err := svc.Analyze(context.Background(), "alice", rules.BuiltIn(), score.Config{Now: at}, "", driven.UpdateManual)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsCount)
	assert.Equal(t, "alice", result.Summary.Login)
	assert.InDelta(t, 0.8, result.Summary.ScoresByDimension["code"], 0.0001)
}

func TestAnalyze_QuotaExceededBlocksFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	storage := newStorage(t)
	quota := &fakeQuota{allowed: false}
	svc := application.NewAnalyzeService(fetcher, storage, application.WithQuotaPolicy(quota))

	_, err := svc.Analyze(context.Background(), "alice", rules.BuiltIn(), score.Config{Now: time.Now()}, "", driven.UpdateManual)

	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrQuotaExceeded)
}

func TestAnalyze_RecordsUsageOnSuccess(t *testing.T) {
	fetcher := &fakeFetcher{}
	storage := newStorage(t)
	quota := &fakeQuota{allowed: true}
	svc := application.NewAnalyzeService(fetcher, storage, application.WithQuotaPolicy(quota))

	_, err := svc.Analyze(context.Background(), "alice", rules.BuiltIn(), score.Config{Now: time.Now()}, "", driven.UpdateManual)

	require.NoError(t, err)
	assert.Equal(t, []driven.UpdateKind{driven.UpdateManual}, quota.used)
}

func TestAnalyze_PropagatesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: assert.AnError}
	storage := newStorage(t)
	svc := application.NewAnalyzeService(fetcher, storage)

	_, err := svc.Analyze(context.Background(), "alice", rules.BuiltIn(), score.Config{Now: time.Now()}, "", driven.UpdateManual)

	assert.Error(t, err)
}
