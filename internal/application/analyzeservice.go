// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ossmk/ossmk/internal/core/score"
	"github.com/ossmk/ossmk/internal/core/since"
	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// ErrAnalysisCancelled wraps a context cancellation encountered mid-analysis,
// distinguishing a deliberate abort from a forge or storage failure.
var ErrAnalysisCancelled = errors.New("analysis cancelled")

// Summary is a flattened view of an AnalysisResult suitable for a UI or API
// response, matching original_source/src/ossmk/core/services/analyze.py's
// analyze_github_user summary shape.
type Summary struct {
	Login             string             `json:"login"`
	TotalEvents       int                `json:"total_events"`
	ScoresByDimension map[string]float64 `json:"scores_by_dimension"`
}

// AnalysisResult is the end-to-end output of one analysis run: the fetched
// events, the reduced scores, and a summary view of both.
type AnalysisResult struct {
	User        string
	EventsCount int
	Events      []model.ContributionEvent
	Scores      []model.Score
	Summary     Summary
}

// AnalyzeService orchestrates C9: fetch -> score -> persist, with an
// optional update-quota gate and growth-point bookkeeping when the quota
// policy also implements driven.GrowthTracker.
type AnalyzeService struct {
	fetcher driven.ForgeFetcher
	storage driven.StorageBackend
	quota   driven.UpdateQuotaPolicy
	growth  driven.GrowthTracker // nil when the quota policy doesn't support it

	maxRepos int
	maxDays  int
	now      func() time.Time
}

// Option configures an AnalyzeService.
type Option func(*AnalyzeService)

// WithMaxRepos bounds how many of a user's repos are scanned for
// contributions (0 means unbounded).
func WithMaxRepos(n int) Option {
	return func(s *AnalyzeService) { s.maxRepos = n }
}

// WithSinceClampDays bounds how far back a relative/absolute "since" value
// may reach, per internal/core/since.Parse (0 disables clamping).
func WithSinceClampDays(days int) Option {
	return func(s *AnalyzeService) { s.maxDays = days }
}

// WithQuotaPolicy attaches an update-quota gate. If policy also implements
// driven.GrowthTracker, Analyze records score snapshots and awards growth
// points on positive movement.
func WithQuotaPolicy(policy driven.UpdateQuotaPolicy) Option {
	return func(s *AnalyzeService) {
		s.quota = policy
		if tracker, ok := policy.(driven.GrowthTracker); ok {
			s.growth = tracker
		}
	}
}

// NewAnalyzeService wires a forge fetcher and storage backend into the C9
// orchestration; the rule set is passed per call to Analyze. quota is
// optional; pass a no-op
// implementation (or WithQuotaPolicy(nil) left unset) when quota enforcement
// is not configured.
func NewAnalyzeService(fetcher driven.ForgeFetcher, storage driven.StorageBackend, opts ...Option) *AnalyzeService {
	s := &AnalyzeService{
		fetcher: fetcher,
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze fetches login's contributions, scores them against rs, persists
// both events and scores, and returns the combined result. kind selects
// which quota bucket (manual vs auto) this run consumes, and is ignored
// when no quota policy was configured.
func (s *AnalyzeService) Analyze(ctx context.Context, login string, rs model.RuleSet, scoreCfg score.Config, sinceRaw string, kind driven.UpdateKind) (*AnalysisResult, error) {
	if s.quota != nil {
		status, err := s.quota.CheckQuota(ctx, login, kind)
		if err != nil {
			return nil, fmt.Errorf("checking update quota for %s: %w", login, err)
		}
		if !status.Allowed {
			return nil, fmt.Errorf("%w: %s", driven.ErrQuotaExceeded, status.Reason)
		}
	}

	resolvedSince := since.Parse(sinceRaw, s.maxDays, s.now())

	events, warnings, err := s.fetcher.FetchUserContributions(ctx, login, s.maxRepos, resolvedSince)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
		}
		return nil, fmt.Errorf("fetching contributions for %s: %w", login, err)
	}
	for _, w := range warnings {
		slog.Warn("partial fetch failure", "user", login, "warning", w)
	}

	scores := score.Score(events, rs, scoreCfg)

	if _, err := s.storage.SaveEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("saving events for %s: %w", login, err)
	}
	if _, err := s.storage.SaveScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("saving scores for %s: %w", login, err)
	}

	if s.growth != nil {
		s.recordGrowth(ctx, login, scores)
	}
	if s.quota != nil {
		if err := s.quota.RecordUsage(ctx, login, kind); err != nil {
			slog.Warn("recording update usage failed", "user", login, "error", err)
		}
	}

	byDim := map[string]float64{}
	for _, sc := range scores {
		byDim[sc.Dimension] += sc.Value
	}

	result := &AnalysisResult{
		User:        login,
		EventsCount: len(events),
		Events:      events,
		Scores:      scores,
		Summary: Summary{
			Login:             login,
			TotalEvents:       len(events),
			ScoresByDimension: byDim,
		},
	}
	return result, nil
}

// recordGrowth snapshots the user's new score total and awards growth
// points for any positive movement since the prior snapshot, per
// original_source/src/ossmk/core/services/analyze.py's backend_update_user.
func (s *AnalyzeService) recordGrowth(ctx context.Context, login string, scores []model.Score) {
	var total float64
	for _, sc := range scores {
		total += sc.Value
	}

	prev, next, err := s.growth.RecordSnapshot(ctx, login, total)
	if err != nil {
		slog.Warn("recording score snapshot failed", "user", login, "error", err)
		return
	}

	delta := next - prev
	if delta <= 0 {
		return
	}
	if err := s.growth.AwardGrowthPoints(ctx, login, delta, prev, next); err != nil {
		slog.Warn("awarding growth points failed", "user", login, "error", err)
	}
}
