// Package github implements the driven.ForgeFetcher port against the GitHub
// REST and GraphQL APIs, with conditional-GET caching, Link/cursor
// pagination, and rate-limit-aware retry.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// Mode selects which GitHub API surface a Client drives.
type Mode string

// Mode values.
const (
	ModeREST    Mode = "rest"
	ModeGraphQL Mode = "graphql"
	ModeAuto    Mode = "auto" // concurrent REST, per spec.md §4.4
)

const (
	defaultRESTBaseURL    = "https://api.github.com"
	defaultGraphQLURL     = "https://api.github.com/graphql"
	defaultRequestTimeout = 30 * time.Second
	userAgent             = "ossmk/1"
)

// Compile-time interface satisfaction check.
var _ driven.ForgeFetcher = (*Client)(nil)

// Client drives GitHub's REST and/or GraphQL APIs depending on Mode. Auth is
// either a static personal-access token or a GitHub App JWT exchanged
// per-installation for short-lived installation tokens.
type Client struct {
	httpClient *http.Client
	cache      driven.HTTPCache
	restBase   string
	graphqlURL string
	mode       Mode

	excludeBots bool
	concurrency int

	token string // personal-access token; empty when using App auth

	isAppAuth         bool
	appID             string
	privateKey        []byte
	installationOwner string // OSSMK_GH_INSTALLATION_OWNER
	installationRepo  string // OSSMK_GH_INSTALLATION_REPO
	staticInstallID   string // GITHUB_APP_INSTALLATION_ID, when already known

	tokenMu            sync.Mutex
	jwtToken           string
	jwtExpiry          time.Time
	installationToken  string
	installationExpiry time.Time
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the transport used for all requests; intended for
// tests that point at an httptest.Server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs overrides the REST and GraphQL endpoints; intended for tests.
func WithBaseURLs(restBase, graphqlURL string) Option {
	return func(c *Client) { c.restBase = restBase; c.graphqlURL = graphqlURL }
}

// WithCache attaches the C1 conditional-GET cache. Without one, every
// request is issued unconditionally.
func WithCache(cache driven.HTTPCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithMode selects the REST/GraphQL/auto code path.
func WithMode(mode Mode) Option {
	return func(c *Client) { c.mode = mode }
}

// WithBotFilter toggles bot exclusion (OSSMK_EXCLUDE_BOTS).
func WithBotFilter(exclude bool) Option {
	return func(c *Client) { c.excludeBots = exclude }
}

// WithConcurrency sets the per-repo fan-out width, clamped to 1..20.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		if n > 20 {
			n = 20
		}
		c.concurrency = n
	}
}

// NewTokenClient builds a Client authenticated with a static bearer token
// (GITHUB_TOKEN / GH_TOKEN).
func NewTokenClient(token string, opts ...Option) *Client {
	c := newBaseClient(opts...)
	c.token = token
	return c
}

// NewAppClient builds a Client authenticated as a GitHub App installation.
// appID, privateKeyPEM, and (optionally) a static installationID or an
// owner/repo pair used to auto-select an installation are required; see
// internal/config for how these are sourced from the environment.
func NewAppClient(appID string, privateKeyPEM []byte, installationID, installationOwner, installationRepo string, opts ...Option) *Client {
	c := newBaseClient(opts...)
	c.isAppAuth = true
	c.appID = appID
	c.privateKey = privateKeyPEM
	c.staticInstallID = installationID
	c.installationOwner = installationOwner
	c.installationRepo = installationRepo
	return c
}

func newBaseClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultRequestTimeout},
		restBase:    defaultRESTBaseURL,
		graphqlURL:  defaultGraphQLURL,
		mode:        ModeAuto,
		excludeBots: true,
		concurrency: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authHeader returns the bearer token to attach to a request, refreshing a
// GitHub App JWT and/or installation token first if needed.
func (c *Client) authHeader(ctx context.Context) (string, error) {
	if !c.isAppAuth {
		return c.token, nil
	}
	return c.installationAccessToken(ctx)
}

func splitRepo(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// FetchRepoIssuesAndPRs implements driven.ForgeFetcher.
func (c *Client) FetchRepoIssuesAndPRs(ctx context.Context, repo string) ([]model.ContributionEvent, error) {
	if c.mode == ModeGraphQL {
		return c.graphqlRepoIssuesAndPRs(ctx, repo)
	}
	return c.restRepoIssuesAndPRs(ctx, repo)
}

// FetchRepoCommits implements driven.ForgeFetcher.
func (c *Client) FetchRepoCommits(ctx context.Context, repo, since string) ([]model.ContributionEvent, error) {
	if c.mode == ModeGraphQL {
		return c.graphqlRepoCommits(ctx, repo, since)
	}
	return c.restRepoCommits(ctx, repo, since)
}

// FetchRepoPRReviews implements driven.ForgeFetcher.
func (c *Client) FetchRepoPRReviews(ctx context.Context, repo string, maxPRs int) ([]model.ContributionEvent, error) {
	if c.mode == ModeGraphQL {
		return c.graphqlRepoPRReviews(ctx, repo, maxPRs)
	}
	return c.restRepoPRReviews(ctx, repo, maxPRs)
}

// FetchUserRepos implements driven.ForgeFetcher.
func (c *Client) FetchUserRepos(ctx context.Context, login string) ([]string, error) {
	return c.restUserRepos(ctx, login)
}

// FetchUserContributions implements driven.ForgeFetcher; see concurrency.go
// for the bounded per-repo fan-out.
func (c *Client) FetchUserContributions(ctx context.Context, login string, maxRepos int, since string) ([]model.ContributionEvent, []string, error) {
	if c.mode == ModeGraphQL {
		return c.graphqlUserContributions(ctx, login, maxRepos, since)
	}
	return c.fetchUserContributionsConcurrent(ctx, login, maxRepos, since)
}
