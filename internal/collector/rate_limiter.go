package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

const (
	// MinBackoff and MaxBackoff bound the wait after a rate-limit refusal
	MinBackoff = time.Second
	MaxBackoff = time.Hour

	// maxRetries is the number of retries after a rate-limit refusal
	maxRetries = 1
)

// Backoff returns the wait until reset, clamped to [MinBackoff, MaxBackoff]
func Backoff(reset, now time.Time) time.Duration {
	wait := reset.Sub(now)
	if wait < MinBackoff {
		return MinBackoff
	}
	if wait > MaxBackoff {
		return MaxBackoff
	}
	return wait
}

// RateLimiter tracks the GitHub API quota and retries requests refused by
// rate limiting once the reset time has passed
type RateLimiter struct {
	mu     sync.Mutex
	state  domain.RateLimitState
	known  bool
	clock  clock.Clock
	logger *slog.Logger
	onWait func(time.Duration)
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(clk clock.Clock, logger *slog.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		clock:  clk,
		logger: logger.With("component", "rate_limiter"),
	}
}

// OnWait registers a hook called with every computed backoff
func (r *RateLimiter) OnWait(fn func(time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWait = fn
}

// UpdateLimit updates the quota from API response headers
func (r *RateLimiter) UpdateLimit(limit, remaining int, reset time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Limit = limit
	r.state.Remaining = remaining
	r.state.Reset = reset
	r.known = true
}

// State returns the last observed quota, or nil before any response was seen
func (r *RateLimiter) State() *domain.RateLimitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known && r.state.LastWait == 0 {
		return nil
	}
	s := r.state
	return &s
}

// Do runs fn, retrying it at most once after a rate-limit refusal.
// The wait is interruptible; a cancelled wait returns a canceled error.
// Errors other than rate limiting are returned as fetch errors.
func (r *RateLimiter) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return apperrors.NewCanceledError(op)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if apperrors.IsCanceled(err) || ctx.Err() != nil {
			return apperrors.NewCanceledError(op)
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return apperrors.NewFetchError(op, err)
		}
		if attempt >= maxRetries {
			return apperrors.NewRateLimitedError(op+" still rate limited after retry", err)
		}

		wait := Backoff(rl.Reset, r.clock.Now())
		r.recordWait(rl.Reset, wait)
		r.logger.Warn("Rate limit reached, waiting before retry",
			"operation", op,
			"wait", wait.Round(time.Second).String(),
			"reset", rl.Reset.Format(time.RFC3339))

		if err := r.clock.Sleep(ctx, wait); err != nil {
			return apperrors.NewCanceledError(op)
		}
	}
}

func (r *RateLimiter) recordWait(reset time.Time, wait time.Duration) {
	r.mu.Lock()
	r.state.LastWait = wait
	r.state.Remaining = 0
	if !reset.IsZero() {
		r.state.Reset = reset
	}
	hook := r.onWait
	r.mu.Unlock()

	if hook != nil {
		hook(wait)
	}
}
