package driven

import (
	"context"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// ForgeFetcher is the capability surface a forge (GitHub today; others could
// be added later) must expose. Both the REST and GraphQL code paths of a
// single forge are two implementations of this same interface, selected by a
// mode argument at construction time rather than by distinct types.
type ForgeFetcher interface {
	// FetchRepoIssuesAndPRs returns all issues and PRs (state=all) for repo,
	// fully paginated.
	FetchRepoIssuesAndPRs(ctx context.Context, repo string) ([]model.ContributionEvent, error)

	// FetchRepoCommits returns the commit list on the default branch,
	// optionally bounded by since (an ISO-8601 timestamp; empty means
	// unbounded).
	FetchRepoCommits(ctx context.Context, repo, since string) ([]model.ContributionEvent, error)

	// FetchRepoPRReviews returns review events across the repo's
	// most-recently-updated PRs, up to maxPRs (0 means unbounded).
	FetchRepoPRReviews(ctx context.Context, repo string, maxPRs int) ([]model.ContributionEvent, error)

	// FetchUserRepos returns the full names (owner/name) of repos owned by
	// login.
	FetchUserRepos(ctx context.Context, login string) ([]string, error)

	// FetchUserContributions returns the union of issues/PRs, commits, and
	// reviews across login's top maxRepos repos (0 means unbounded),
	// optionally bounded by since. Per-repo failures are folded into the
	// returned warnings rather than propagated.
	FetchUserContributions(ctx context.Context, login string, maxRepos int, since string) ([]model.ContributionEvent, []string, error)
}
