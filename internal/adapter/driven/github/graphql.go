package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) graphqlDo(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshaling GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	token, err := c.authHeader(ctx)
	if err != nil {
		return fmt.Errorf("resolving auth for GraphQL request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GraphQL request: HTTP %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding GraphQL response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

const searchIssuesAndPRsQuery = `query($q: String!, $after: String) {
	search(query: $q, type: ISSUE, first: 50, after: $after) {
		pageInfo { hasNextPage endCursor }
		nodes {
			__typename
			... on PullRequest {
				id databaseId createdAt
				author { login }
			}
			... on Issue {
				id databaseId createdAt
				author { login }
			}
		}
	}
}`

type searchNode struct {
	Typename   string `json:"__typename"`
	DatabaseID int64  `json:"databaseId"`
	CreatedAt  string `json:"createdAt"`
	Author     *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// graphqlRepoIssuesAndPRs reproduces restRepoIssuesAndPRs using GitHub's
// search API scoped to a single repo (repo:owner/name).
func (c *Client) graphqlRepoIssuesAndPRs(ctx context.Context, repo string) ([]model.ContributionEvent, error) {
	events, err := c.graphqlSearch(ctx, fmt.Sprintf("repo:%s is:issue is:pr", repo), repo)
	if err != nil {
		return nil, err
	}
	return filterBots(events, c.excludeBots), nil
}

func (c *Client) graphqlSearch(ctx context.Context, searchQuery, repoID string) ([]model.ContributionEvent, error) {
	var events []model.ContributionEvent
	var after string

	for {
		var result struct {
			Search struct {
				PageInfo pageInfo     `json:"pageInfo"`
				Nodes    []searchNode `json:"nodes"`
			} `json:"search"`
		}

		vars := map[string]any{"q": searchQuery}
		if after != "" {
			vars["after"] = after
		}
		if err := c.graphqlDo(ctx, searchIssuesAndPRsQuery, vars, &result); err != nil {
			return nil, err
		}

		for _, n := range result.Search.Nodes {
			createdAt, _ := parseGraphQLTime(n.CreatedAt)
			kind := model.KindIssue
			if n.Typename == "PullRequest" {
				kind = model.KindPR
			}
			login := "unknown"
			if n.Author != nil && n.Author.Login != "" {
				login = n.Author.Login
			}
			events = append(events, model.ContributionEvent{
				ID:        fmt.Sprintf("%d", n.DatabaseID),
				Kind:      kind,
				RepoID:    repoID,
				UserID:    login,
				CreatedAt: createdAt,
			})
		}

		if !result.Search.PageInfo.HasNextPage {
			break
		}
		after = result.Search.PageInfo.EndCursor
	}

	return events, nil
}

const repoCommitHistoryQuery = `query($owner: String!, $name: String!, $since: GitTimestamp, $after: String) {
	repository(owner: $owner, name: $name) {
		defaultBranchRef {
			target {
				... on Commit {
					history(first: 100, since: $since, after: $after) {
						pageInfo { hasNextPage endCursor }
						nodes {
							oid
							committedDate
							author { user { login } }
						}
					}
				}
			}
		}
	}
}`

type commitHistoryNode struct {
	OID           string `json:"oid"`
	CommittedDate string `json:"committedDate"`
	Author        struct {
		User *struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"author"`
}

func (c *Client) graphqlRepoCommits(ctx context.Context, repo, since string) ([]model.ContributionEvent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var events []model.ContributionEvent
	var after string

	for {
		var result struct {
			Repository struct {
				DefaultBranchRef struct {
					Target struct {
						History struct {
							PageInfo pageInfo            `json:"pageInfo"`
							Nodes    []commitHistoryNode `json:"nodes"`
						} `json:"history"`
					} `json:"target"`
				} `json:"defaultBranchRef"`
			} `json:"repository"`
		}

		vars := map[string]any{"owner": owner, "name": name}
		if since != "" {
			vars["since"] = since
		}
		if after != "" {
			vars["after"] = after
		}
		if err := c.graphqlDo(ctx, repoCommitHistoryQuery, vars, &result); err != nil {
			return nil, err
		}

		history := result.Repository.DefaultBranchRef.Target.History
		for _, n := range history.Nodes {
			login := "unknown"
			if n.Author.User != nil && n.Author.User.Login != "" {
				login = n.Author.User.Login
			}
			createdAt, _ := parseGraphQLTime(n.CommittedDate)
			events = append(events, model.ContributionEvent{
				ID:        n.OID,
				Kind:      model.KindCommit,
				RepoID:    repo,
				UserID:    login,
				CreatedAt: createdAt,
			})
		}

		if !history.PageInfo.HasNextPage {
			break
		}
		after = history.PageInfo.EndCursor
	}

	return filterBots(events, c.excludeBots), nil
}

const repoPRReviewsQuery = `query($owner: String!, $name: String!, $after: String) {
	repository(owner: $owner, name: $name) {
		pullRequests(first: 100, after: $after, orderBy: {field: UPDATED_AT, direction: DESC}) {
			pageInfo { hasNextPage endCursor }
			nodes {
				number
				reviews(first: 100) {
					nodes {
						databaseId
						submittedAt
						author { login }
					}
				}
			}
		}
	}
}`

type prReviewsNode struct {
	Number  int `json:"number"`
	Reviews struct {
		Nodes []struct {
			DatabaseID  int64  `json:"databaseId"`
			SubmittedAt string `json:"submittedAt"`
			Author      *struct {
				Login string `json:"login"`
			} `json:"author"`
		} `json:"nodes"`
	} `json:"reviews"`
}

func (c *Client) graphqlRepoPRReviews(ctx context.Context, repo string, maxPRs int) ([]model.ContributionEvent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var events []model.ContributionEvent
	var after string
	prCount := 0

outer:
	for {
		var result struct {
			Repository struct {
				PullRequests struct {
					PageInfo pageInfo        `json:"pageInfo"`
					Nodes    []prReviewsNode `json:"nodes"`
				} `json:"pullRequests"`
			} `json:"repository"`
		}

		vars := map[string]any{"owner": owner, "name": name}
		if after != "" {
			vars["after"] = after
		}
		if err := c.graphqlDo(ctx, repoPRReviewsQuery, vars, &result); err != nil {
			return nil, err
		}

		for _, pr := range result.Repository.PullRequests.Nodes {
			for _, rv := range pr.Reviews.Nodes {
				login := "unknown"
				if rv.Author != nil && rv.Author.Login != "" {
					login = rv.Author.Login
				}
				createdAt, _ := parseGraphQLTime(rv.SubmittedAt)
				events = append(events, model.ContributionEvent{
					ID:        fmt.Sprintf("%d", rv.DatabaseID),
					Kind:      model.KindReview,
					RepoID:    repo,
					UserID:    login,
					CreatedAt: createdAt,
				})
			}
			prCount++
			if maxPRs > 0 && prCount >= maxPRs {
				break outer
			}
		}

		if !result.Repository.PullRequests.PageInfo.HasNextPage {
			break
		}
		after = result.Repository.PullRequests.PageInfo.EndCursor
	}

	return filterBots(events, c.excludeBots), nil
}

// graphqlUserContributions implements FetchUserContributions for ModeGraphQL
// by combining a single authored-search query with per-repo commit/review
// lookups, folding per-repo failures into warnings like the REST path.
func (c *Client) graphqlUserContributions(ctx context.Context, login string, maxRepos int, since string) ([]model.ContributionEvent, []string, error) {
	authored, err := c.graphqlSearch(ctx, fmt.Sprintf("author:%s is:public", login), "")
	if err != nil {
		return nil, nil, fmt.Errorf("searching contributions for %s: %w", login, err)
	}

	repoSet := map[string]struct{}{}
	for _, e := range authored {
		if e.RepoID != "" {
			repoSet[e.RepoID] = struct{}{}
		}
	}

	repos, err := c.restUserRepos(ctx, login)
	if err != nil {
		return nil, nil, fmt.Errorf("listing repos for %s: %w", login, err)
	}
	if maxRepos > 0 && len(repos) > maxRepos {
		repos = repos[:maxRepos]
	}

	var events []model.ContributionEvent
	var warnings []string
	events = append(events, filterBots(authored, c.excludeBots)...)

	for _, repo := range repos {
		commits, err := c.graphqlRepoCommits(ctx, repo, since)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: commits: %v", repo, err))
			continue
		}
		for _, e := range commits {
			if strings.EqualFold(e.UserID, login) {
				events = append(events, e)
			}
		}

		reviews, err := c.graphqlRepoPRReviews(ctx, repo, 0)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: reviews: %v", repo, err))
			continue
		}
		for _, e := range reviews {
			if strings.EqualFold(e.UserID, login) {
				events = append(events, e)
			}
		}
	}

	return events, warnings, nil
}

func parseGraphQLTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing GraphQL timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
