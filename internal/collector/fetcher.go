package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

// MaxBatchWidth caps concurrent page requests to stay clear of secondary rate limits
const MaxBatchWidth = 10

// FetcherConfig holds the pagination settings
type FetcherConfig struct {
	PageSize   int
	BatchWidth int
	BatchDelay time.Duration
}

// DefaultFetcherConfig returns the default pagination settings
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PageSize:   100,
		BatchWidth: MaxBatchWidth,
		BatchDelay: 100 * time.Millisecond,
	}
}

// Fetcher retrieves the complete stargazer list with bounded concurrency
type Fetcher struct {
	source  Collector
	limiter *RateLimiter
	cfg     FetcherConfig
	clock   clock.Clock
	logger  *slog.Logger
}

// NewFetcher creates a fetcher over source. Out-of-range settings fall back
// to the defaults.
func NewFetcher(source Collector, limiter *RateLimiter, cfg FetcherConfig, clk clock.Clock, logger *slog.Logger) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = def.PageSize
	}
	if cfg.BatchWidth <= 0 || cfg.BatchWidth > MaxBatchWidth {
		cfg.BatchWidth = def.BatchWidth
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = def.BatchDelay
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = NewRateLimiter(clk, logger)
	}
	return &Fetcher{
		source:  source,
		limiter: limiter,
		cfg:     cfg,
		clock:   clk,
		logger:  logger.With("component", "fetcher"),
	}
}

// TotalCount returns the repository's reported stargazer count
func (f *Fetcher) TotalCount(ctx context.Context) (int, error) {
	var total int
	err := f.limiter.Do(ctx, "get repository summary", func(ctx context.Context) error {
		n, err := f.source.StargazerCount(ctx)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	return total, err
}

func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]domain.Stargazer, error) {
	var items []domain.Stargazer
	err := f.limiter.Do(ctx, fmt.Sprintf("list stargazers page %d", page), func(ctx context.Context) error {
		got, err := f.source.ListStargazers(ctx, page, f.cfg.PageSize)
		if err != nil {
			return err
		}
		items = got
		return nil
	})
	return items, err
}

// FetchAll retrieves every stargazer. The first page is fetched alone; the
// rest are requested in concurrent batches until a short page or a batch
// without data. Failed pages in a batch are logged and skipped. A failure of
// the first page fails the whole fetch.
func (f *Fetcher) FetchAll(ctx context.Context) ([]domain.Stargazer, error) {
	start := f.clock.Now()
	f.logger.Debug("Fetching stargazers")

	first, err := f.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	all := append([]domain.Stargazer(nil), first...)
	if len(first) < f.cfg.PageSize {
		return f.finish(all, 1, start), nil
	}

	pages := 1
	next := 2
	for {
		results := make([][]domain.Stargazer, f.cfg.BatchWidth)

		g := new(errgroup.Group)
		g.SetLimit(f.cfg.BatchWidth)
		for i := range results {
			page := next + i
			g.Go(func() error {
				items, err := f.fetchPage(ctx, page)
				if err != nil {
					if !apperrors.IsCanceled(err) {
						f.logger.Warn("Failed to fetch page, skipping", "page", page, "error", err)
					}
					return nil
				}
				results[i] = items
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return nil, apperrors.NewCanceledError("fetch stargazers")
		}

		hasData := false
		done := false
		for _, items := range results {
			if len(items) == 0 {
				continue
			}
			hasData = true
			pages++
			all = append(all, items...)
			if len(items) < f.cfg.PageSize {
				done = true
				break
			}
		}
		if !hasData || done {
			break
		}

		next += f.cfg.BatchWidth
		f.logger.Debug("Fetched batch", "stargazers", len(all), "next_page", next)

		if err := f.clock.Sleep(ctx, f.cfg.BatchDelay); err != nil {
			return nil, apperrors.NewCanceledError("fetch stargazers")
		}
	}

	return f.finish(all, pages, start), nil
}

// finish drops duplicates caused by the list shifting between page requests
func (f *Fetcher) finish(items []domain.Stargazer, pages int, start time.Time) []domain.Stargazer {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.Stargazer, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Login]; ok {
			continue
		}
		seen[it.Login] = struct{}{}
		out = append(out, it)
	}
	f.logger.Info("Fetched stargazers",
		"stargazers", len(out),
		"pages", pages,
		"duration", f.clock.Now().Sub(start).Round(time.Millisecond).String())
	return out
}

// RateLimit returns the last observed quota
func (f *Fetcher) RateLimit() *domain.RateLimitState {
	return f.limiter.State()
}

// Close closes the underlying session
func (f *Fetcher) Close() {
	f.source.Close()
}
