// Package app wires configuration into a running monitor and its HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/github-star-monitor/internal/api"
	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/collector"
	"github.com/kurihiro0119/github-star-monitor/internal/config"
	"github.com/kurihiro0119/github-star-monitor/internal/metrics"
	"github.com/kurihiro0119/github-star-monitor/internal/monitor"
	"github.com/kurihiro0119/github-star-monitor/internal/state"
	"github.com/kurihiro0119/github-star-monitor/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// App is a configured monitor plus its optional API server
type App struct {
	cfg      *config.Config
	monitor  *monitor.Monitor
	registry *prometheus.Registry
	archive  storage.Storage
	logger   *slog.Logger
}

// New validates cfg and builds every component. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	owner, name, err := config.ParseRepo(cfg.Repo)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.Real()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.New(reg, cfg.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	limiter := collector.NewRateLimiter(clk, logger)
	limiter.OnWait(rec.RateLimitWait)

	opts := []collector.Option{
		collector.WithRateObserver(limiter),
		collector.WithClock(clk),
		collector.WithLogger(logger),
	}
	if cfg.GitHubAPIURL != "" {
		opts = append(opts, collector.WithBaseURL(cfg.GitHubAPIURL))
	}
	source := collector.NewGitHubCollector(owner, name, cfg.GitHubToken, opts...)

	fetcher := collector.NewFetcher(source, limiter, collector.FetcherConfig{
		PageSize:   cfg.PageSize,
		BatchWidth: cfg.BatchWidth,
		BatchDelay: cfg.BatchDelay,
	}, clk, logger)

	archive, err := OpenArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	monOpts := []monitor.Option{
		monitor.WithMetrics(rec),
		monitor.WithClock(clk),
		monitor.WithLogger(logger),
	}
	if archive != nil {
		monOpts = append(monOpts, monitor.WithArchive(archive))
	}
	store := state.NewFileStore(cfg.StatePath(), cfg.Repo, clk, logger)

	mon := monitor.New(monitor.Config{
		Repo:             cfg.Repo,
		Interval:         cfg.CheckInterval,
		DriftTolerance:   cfg.DriftTolerance,
		MemberInfoMaxAge: cfg.MemberInfoMaxAge,
		ActivityCapacity: cfg.ActivityCapacity,
	}, fetcher, store, monOpts...)

	return &App{
		cfg:      cfg,
		monitor:  mon,
		registry: reg,
		archive:  archive,
		logger:   logger,
	}, nil
}

// Monitor returns the underlying monitor
func (a *App) Monitor() *monitor.Monitor {
	return a.monitor
}

// Handler returns the HTTP API bound to this app's monitor and metrics
func (a *App) Handler() http.Handler {
	return api.SetupRoutes(api.NewHandler(a.monitor), a.registry, a.logger)
}

// Run locks the state file, then runs the monitor, and the API server when
// enabled, until ctx is done
func (a *App) Run(ctx context.Context) error {
	lock, err := state.AcquireLock(a.cfg.StatePath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("Failed to release state lock", "error", err)
		}
	}()

	if !a.cfg.APIEnabled {
		return a.monitor.Run(ctx)
	}

	addr := net.JoinHostPort(a.cfg.APIHost, a.cfg.APIPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return a.serve(ctx, lis)
}

// serve runs the monitor and the API on lis until ctx is done or the server fails
func (a *App) serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.monitor.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Info("Starting API server", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.logger.Warn("API server shutdown timed out", "timeout", shutdownTimeout.String(), "error", err)
			return nil
		}
		a.logger.Info("API server stopped")
		return nil
	})
	return g.Wait()
}

// Close releases the archive
func (a *App) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}
