package github

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// fetchUserContributionsConcurrent implements the "auto"/REST path of
// FetchUserContributions: per-repo work is scheduled under a semaphore of
// configurable width (spec.md §4.4), and a failing repo contributes a
// warning instead of aborting the aggregate.
func (c *Client) fetchUserContributionsConcurrent(ctx context.Context, login string, maxRepos int, since string) ([]model.ContributionEvent, []string, error) {
	repos, err := c.restUserRepos(ctx, login)
	if err != nil {
		return nil, nil, fmt.Errorf("listing repos for %s: %w", login, err)
	}
	if maxRepos > 0 && len(repos) > maxRepos {
		repos = repos[:maxRepos]
	}

	sem := semaphore.NewWeighted(int64(c.concurrency))
	var mu sync.Mutex
	var events []model.ContributionEvent
	var warnings []string
	var wg sync.WaitGroup

	for _, repo := range repos {
		repo := repo
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			warnings = append(warnings, fmt.Sprintf("%s: %v", repo, err))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			repoEvents, warn := c.fetchOneRepoContributions(ctx, login, repo, since)

			mu.Lock()
			events = append(events, repoEvents...)
			if warn != "" {
				warnings = append(warnings, warn)
			}
			mu.Unlock()
		}()
	}

	wg.Wait()

	return events, warnings, nil
}

// fetchOneRepoContributions aggregates issues/PRs, commits, and reviews for
// a single repo, folding any error into a warning string rather than
// propagating it, per the best-effort fan-out contract.
func (c *Client) fetchOneRepoContributions(ctx context.Context, login, repo, since string) ([]model.ContributionEvent, string) {
	var all []model.ContributionEvent

	issuesAndPRs, err := c.restRepoIssuesAndPRs(ctx, repo)
	if err != nil {
		return nil, fmt.Sprintf("%s: issues/PRs: %v", repo, err)
	}
	all = append(all, issuesAndPRs...)

	commits, err := c.restRepoCommits(ctx, repo, since)
	if err != nil {
		return nil, fmt.Sprintf("%s: commits: %v", repo, err)
	}
	all = append(all, commits...)

	reviews, err := c.restRepoPRReviews(ctx, repo, 0)
	if err != nil {
		return nil, fmt.Sprintf("%s: reviews: %v", repo, err)
	}
	all = append(all, reviews...)

	// The repo-scoped endpoints above return every contributor's activity;
	// keep only events attributable to the requested login so the result
	// reflects a single user's contributions. GitHub logins are
	// case-insensitive, so compare fold-cased rather than exact.
	filtered := all[:0]
	for _, e := range all {
		if strings.EqualFold(e.UserID, login) {
			filtered = append(filtered, e)
		}
	}

	return filtered, ""
}
