package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossmk/ossmk/internal/core/rules"
	"github.com/ossmk/ossmk/internal/domain/model"
)

func floatPtr(f float64) *float64 { return &f }

func findScore(scores []model.Score, user, dim string) (float64, bool) {
	for _, s := range scores {
		if s.SubjectID == user && s.Dimension == dim {
			return s.Value, true
		}
	}
	return 0, false
}

func TestScoreSingleCommitDefaultRules(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u", CreatedAt: created},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: created})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.8, v, 1e-9)
}

func TestScoreClipping(t *testing.T) {
	day := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := make([]model.ContributionEvent, 0, 25)
	for i := 0; i < 25; i++ {
		events = append(events, model.ContributionEvent{
			ID: string(rune('a' + i)), Kind: model.KindCommit, RepoID: "gh/x/y",
			UserID: "u", CreatedAt: day,
		})
	}
	out := Score(events, rules.BuiltIn(), Config{Now: day})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 20*0.8, v, 1e-9)
}

func TestScoreMixedKinds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindPR, RepoID: "gh/x/y", UserID: "u", CreatedAt: now},
		{ID: "b", Kind: model.KindIssue, RepoID: "gh/x/y", UserID: "u", CreatedAt: now},
		{ID: "c", Kind: model.KindReview, RepoID: "gh/x/y", UserID: "u", CreatedAt: now},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: now})

	code, _ := findScore(out, "u", "code")
	community, _ := findScore(out, "u", "community")
	review, _ := findScore(out, "u", "review")
	assert.InDelta(t, 1.0, code, 1e-9)
	assert.InDelta(t, 0.3, community, 1e-9)
	assert.InDelta(t, 0.6, review, 1e-9)
}

func TestScoreDecayExponential(t *testing.T) {
	now := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	created := now.Add(-10 * 24 * time.Hour)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u", CreatedAt: created},
	}
	rs := rules.BuiltIn()
	rs.Decay = model.Decay{Mode: model.DecayExponential, HalfLifeDays: 10}

	out := Score(events, rs, Config{Now: now})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-9)
}

func TestScoreSelfRepoPenalty(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/u/y", UserID: "u", CreatedAt: now},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: now, SelfRepoPenalty: floatPtr(0.5)})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-9)
}

func TestScoreSelfRepoPenaltyZeroFullyZeroesContribution(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/u/y", UserID: "u", CreatedAt: now},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: now, SelfRepoPenalty: floatPtr(0)})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestScoreSelfRepoPenaltyNilDisablesPenalty(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/u/y", UserID: "u", CreatedAt: now},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: now})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.8, v, 1e-9)
}

func TestScoreDecayWindowDropsDimension(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-100 * 24 * time.Hour)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u", CreatedAt: created},
	}
	rs := rules.BuiltIn()
	rs.Decay = model.Decay{Mode: model.DecayWindow, WindowDays: 30}

	out := Score(events, rs, Config{Now: now})
	_, ok := findScore(out, "u", "code")
	assert.False(t, ok)
}

func TestScoreMalformedRepoIDDisablesPenaltyButKeepsEvent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "not-a-valid-repo-id", UserID: "u", CreatedAt: now},
	}
	out := Score(events, rules.BuiltIn(), Config{Now: now, SelfRepoPenalty: floatPtr(0.1)})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.8, v, 1e-9)
}

func TestScoreMissingCreatedAtDisablesClippingAndDecay(t *testing.T) {
	rs := rules.BuiltIn()
	rs.Decay = model.Decay{Mode: model.DecayExponential, HalfLifeDays: 1}
	events := []model.ContributionEvent{
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u"},
	}
	out := Score(events, rs, Config{Now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	v, ok := findScore(out, "u", "code")
	require.True(t, ok)
	assert.InDelta(t, 0.8, v, 1e-9)
}

func TestScoreIsDeterministicAcrossRuns(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.ContributionEvent{
		{ID: "b", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u", CreatedAt: now},
		{ID: "a", Kind: model.KindCommit, RepoID: "gh/x/y", UserID: "u", CreatedAt: now},
	}
	out1 := Score(append([]model.ContributionEvent{}, events...), rules.BuiltIn(), Config{Now: now})
	out2 := Score(append([]model.ContributionEvent{}, events...), rules.BuiltIn(), Config{Now: now})
	assert.Equal(t, out1, out2)
}
