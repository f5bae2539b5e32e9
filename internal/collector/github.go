package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// connection pooling limits sized for one batch of page requests
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 60 * time.Second
	defaultRequestTimeout      = 30 * time.Second

	// used when a rate-limit response carries no reset information
	defaultRateLimitWait = time.Minute

	userAgent = "github-star-monitor"
)

// RateObserver receives the quota reported by every API response
type RateObserver interface {
	UpdateLimit(limit, remaining int, reset time.Time)
}

// Option configures a GitHubCollector
type Option func(*GitHubCollector)

// WithBaseURL points the collector at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) Option {
	return func(c *GitHubCollector) {
		c.baseURL = baseURL
	}
}

// WithTransport replaces the pooled base transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *GitHubCollector) {
		c.base = rt
	}
}

// WithRateObserver registers an observer for response quota headers
func WithRateObserver(o RateObserver) Option {
	return func(c *GitHubCollector) {
		c.observer = o
	}
}

// WithClock sets the clock used to resolve relative retry hints
func WithClock(clk clock.Clock) Option {
	return func(c *GitHubCollector) {
		c.clock = clk
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *GitHubCollector) {
		c.logger = logger
	}
}

// GitHubCollector implements Collector using the GitHub REST API.
// The HTTP session is created on first use and reused until Close.
type GitHubCollector struct {
	owner    string
	repo     string
	token    string
	baseURL  string
	base     http.RoundTripper
	observer RateObserver
	clock    clock.Clock
	logger   *slog.Logger

	mu        sync.Mutex
	client    *github.Client
	transport *http.Transport
	closed    bool
}

// NewGitHubCollector creates a collector for owner/repo. An empty token
// sends unauthenticated requests.
func NewGitHubCollector(owner, repo, token string, opts ...Option) *GitHubCollector {
	c := &GitHubCollector{
		owner: owner,
		repo:  repo,
		token: token,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "collector", "repo", owner+"/"+repo)
	return c
}

// session returns the shared client, creating it on first use
func (c *GitHubCollector) session() (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("github session is closed")
	}
	if c.client != nil {
		return c.client, nil
	}

	base := c.base
	if base == nil {
		c.transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		}
		base = c.transport
	}

	rt := base
	if c.token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token}),
			Base:   base,
		}
	}

	client := github.NewClient(&http.Client{Transport: rt, Timeout: defaultRequestTimeout})
	client.UserAgent = userAgent
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", c.baseURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	c.client = client
	c.logger.Debug("Created GitHub session")
	return client, nil
}

// ListStargazers retrieves one page of stargazers
func (c *GitHubCollector) ListStargazers(ctx context.Context, page, perPage int) ([]domain.Stargazer, error) {
	client, err := c.session()
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{Page: page, PerPage: perPage}
	stargazers, resp, err := client.Activity.ListStargazers(ctx, c.owner, c.repo, opts)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, c.classify(err)
	}

	out := make([]domain.Stargazer, 0, len(stargazers))
	for _, s := range stargazers {
		if s == nil || s.User == nil || s.User.GetLogin() == "" {
			continue
		}
		sg := domain.Stargazer{
			Login:     s.User.GetLogin(),
			ID:        s.User.GetID(),
			HTMLURL:   s.User.GetHTMLURL(),
			AvatarURL: s.User.GetAvatarURL(),
		}
		if s.StarredAt != nil {
			t := s.StarredAt.Time
			sg.StarredAt = &t
		}
		out = append(out, sg)
	}
	return out, nil
}

// StargazerCount retrieves stargazers_count from the repository summary
func (c *GitHubCollector) StargazerCount(ctx context.Context) (int, error) {
	client, err := c.session()
	if err != nil {
		return 0, err
	}

	repo, resp, err := client.Repositories.Get(ctx, c.owner, c.repo)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return 0, c.classify(err)
	}
	return repo.GetStargazersCount(), nil
}

// Close releases idle connections. It is safe to call more than once.
func (c *GitHubCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.client = nil
	c.logger.Debug("Closed GitHub session")
}

// classify converts rate-limit refusals into *RateLimitError
func (c *GitHubCollector) classify(err error) error {
	if reset, ok := rateLimitReset(err, c.clock.Now()); ok {
		return &RateLimitError{Reset: reset, Err: err}
	}
	return err
}

// rateLimitReset reports whether err is a rate-limit refusal and when it lifts
func rateLimitReset(err error, now time.Time) (time.Time, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		if rle.Rate.Reset.IsZero() {
			return now.Add(defaultRateLimitWait), true
		}
		return rle.Rate.Reset.Time, true
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return now.Add(*abuse.RetryAfter), true
		}
		return now.Add(defaultRateLimitWait), true
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		status := er.Response.StatusCode
		if (status == http.StatusForbidden || status == http.StatusTooManyRequests) &&
			strings.Contains(strings.ToLower(er.Message), "rate limit") {
			if reset, ok := parseResetHeader(er.Response.Header); ok {
				return reset, true
			}
			return now.Add(defaultRateLimitWait), true
		}
	}

	return time.Time{}, false
}

func parseResetHeader(h http.Header) (time.Time, bool) {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// updateRateLimitFromResponse forwards quota headers to the observer
func (c *GitHubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp == nil || c.observer == nil || resp.Rate.Limit == 0 {
		return
	}
	c.observer.UpdateLimit(resp.Rate.Limit, resp.Rate.Remaining, resp.Rate.Reset.Time)
}
