package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// getJSON issues an authenticated, conditionally-cached GET against url and
// decodes the JSON body into out. It returns the response's Link header (for
// pagination); when a cache is attached, a 2xx body is written to it here and
// a 304 is answered from the cached body.
func (c *Client) getJSON(ctx context.Context, url string, out any) (linkHeader string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	token, err := c.authHeader(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving auth for %s: %w", url, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var cached *model.CacheEntry
	if c.cache != nil {
		cached, err = c.cache.Get(ctx, url)
		if err != nil {
			return "", fmt.Errorf("reading cache for %s: %w", url, err)
		}
		if cached != nil && cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		return resp.Header.Get("Link"), json.Unmarshal([]byte(cached.Body), out)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body for %s: %w", url, err)
	}

	if c.cache != nil {
		entry := model.CacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         string(body),
		}
		if err := c.cache.Set(ctx, entry); err != nil {
			return "", fmt.Errorf("writing cache for %s: %w", url, err)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("decoding response for %s: %w", url, err)
	}
	return resp.Header.Get("Link"), nil
}

func (c *Client) restRepoIssuesAndPRs(ctx context.Context, repo string) ([]model.ContributionEvent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/issues?state=all&per_page=100", c.restBase, owner, name)
	var events []model.ContributionEvent

	for url != "" {
		var page []restIssueOrPR
		link, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			events = append(events, item.toEvent(repo))
		}
		url = nextPageURL(link)
	}

	return filterBots(events, c.excludeBots), nil
}

func (c *Client) restRepoCommits(ctx context.Context, repo, since string) ([]model.ContributionEvent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=100", c.restBase, owner, name)
	if since != "" {
		url += "&since=" + since
	}
	var events []model.ContributionEvent

	for url != "" {
		var page []restCommit
		link, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			events = append(events, item.toEvent(repo))
		}
		url = nextPageURL(link)
	}

	return filterBots(events, c.excludeBots), nil
}

// restRepoPRReviews walks the repo's most-recently-updated PRs (up to
// maxPRs, 0 meaning unbounded) and fetches reviews for each.
func (c *Client) restRepoPRReviews(ctx context.Context, repo string, maxPRs int) ([]model.ContributionEvent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	prNumbers, err := c.listPRNumbersByRecency(ctx, owner, name, maxPRs)
	if err != nil {
		return nil, err
	}

	var events []model.ContributionEvent
	for _, pr := range prNumbers {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews?per_page=100", c.restBase, owner, name, pr)
		for url != "" {
			var page []restReview
			link, err := c.getJSON(ctx, url, &page)
			if err != nil {
				return nil, err
			}
			for _, item := range page {
				events = append(events, item.toEvent(repo))
			}
			url = nextPageURL(link)
		}
	}

	return filterBots(events, c.excludeBots), nil
}

func (c *Client) listPRNumbersByRecency(ctx context.Context, owner, name string, maxPRs int) ([]int, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&sort=updated&direction=desc&per_page=100", c.restBase, owner, name)
	var numbers []int

	for url != "" {
		var page []struct {
			Number int `json:"number"`
		}
		link, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			numbers = append(numbers, item.Number)
			if maxPRs > 0 && len(numbers) >= maxPRs {
				return numbers, nil
			}
		}
		url = nextPageURL(link)
	}

	return numbers, nil
}

func (c *Client) restUserRepos(ctx context.Context, login string) ([]string, error) {
	url := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=updated", c.restBase, login)
	var names []string

	for url != "" {
		var page []struct {
			FullName string `json:"full_name"`
		}
		link, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			names = append(names, item.FullName)
		}
		url = nextPageURL(link)
	}

	return names, nil
}
