package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// Collector defines the raw GitHub calls needed to observe stargazers.
// Implementations return *RateLimitError when the API refuses a request
// because of rate limiting.
type Collector interface {
	// ListStargazers retrieves one page of the stargazers list
	ListStargazers(ctx context.Context, page, perPage int) ([]domain.Stargazer, error)

	// StargazerCount retrieves the repository's own stargazers_count
	StargazerCount(ctx context.Context) (int, error)

	// Close releases the network session
	Close()
}

// RateLimitError reports a request refused until Reset
type RateLimitError struct {
	Reset time.Time
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s: %v", e.Reset.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
