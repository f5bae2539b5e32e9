// Package monitor drives the initialize, sleep and check cycle that keeps a
// stargazer snapshot in sync with GitHub.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/github-star-monitor/internal/aggregator"
	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/diff"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
	"github.com/kurihiro0119/github-star-monitor/internal/metrics"
	"github.com/kurihiro0119/github-star-monitor/internal/state"
)

// Phase is the lifecycle state of the monitor
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseSleeping     Phase = "sleeping"
	PhaseChecking     Phase = "checking"
	PhaseShuttingDown Phase = "shutting_down"
	PhaseStopped      Phase = "stopped"
)

const archiveTimeout = 10 * time.Second

// ErrAlreadyStarted is returned by a second call to Run
var ErrAlreadyStarted = errors.New("monitor already started")

var errCyclePanic = errors.New("panic during check")

// Fetcher retrieves the live stargazer data
type Fetcher interface {
	FetchAll(ctx context.Context) ([]domain.Stargazer, error)
	TotalCount(ctx context.Context) (int, error)
	RateLimit() *domain.RateLimitState
	Close()
}

// Archive stores activity events beyond the in-memory feed
type Archive interface {
	SaveEvents(ctx context.Context, events []*domain.ActivityEvent) error
	GetEvents(ctx context.Context, repo string, since, until time.Time) ([]*domain.ActivityEvent, error)
}

// Config holds the monitor settings
type Config struct {
	Repo             string
	Interval         time.Duration
	DriftTolerance   int
	MemberInfoMaxAge time.Duration
	ActivityCapacity int
}

// Option configures a Monitor
type Option func(*Monitor)

// WithArchive enables event archiving and stats restoration
func WithArchive(a Archive) Option {
	return func(m *Monitor) {
		m.archive = a
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Monitor) {
		m.metrics = r
	}
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = clk
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithIDGenerator replaces the event ID generator
func WithIDGenerator(fn func() string) Option {
	return func(m *Monitor) {
		m.newID = fn
	}
}

// Monitor watches one repository's stargazers
type Monitor struct {
	cfg     Config
	fetcher Fetcher
	store   state.Store
	stats   *aggregator.Stats
	feed    *aggregator.Feed
	archive Archive
	metrics *metrics.Recorder
	clock   clock.Clock
	logger  *slog.Logger
	newID   func() string

	started atomic.Bool

	mu       sync.RWMutex
	snapshot *domain.Snapshot
	phase    Phase
}

// New creates a monitor
func New(cfg Config, fetcher Fetcher, store state.Store, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		phase:   PhaseIdle,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "monitor", "repo", cfg.Repo)
	m.stats = aggregator.NewStats(m.clock, nil)
	m.feed = aggregator.NewFeed(cfg.ActivityCapacity)
	return m
}

// Run initializes the monitor and checks for changes every interval until
// ctx is cancelled. It may be called only once.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer m.shutdown()

	m.logger.Info("Starting star monitor",
		"interval", m.cfg.Interval.String(),
		"drift_tolerance", m.cfg.DriftTolerance)

	m.restoreActivity(ctx)

	m.setPhase(PhaseInitializing)
	initialized := m.tryInitialize(ctx)

	for ctx.Err() == nil {
		m.setPhase(PhaseSleeping)
		if err := m.clock.Sleep(ctx, m.cfg.Interval); err != nil {
			break
		}

		if !initialized {
			m.setPhase(PhaseInitializing)
			initialized = m.tryInitialize(ctx)
			continue
		}

		m.setPhase(PhaseChecking)
		m.runCheck(ctx)
	}

	return nil
}

// tryInitialize runs initialize, treating a panic as a failed attempt
func (m *Monitor) tryInitialize(ctx context.Context) bool {
	ok := false
	err := m.guard(func() error {
		ok = m.initialize(ctx)
		return nil
	})()
	return err == nil && ok
}

// initialize loads the saved snapshot and either resumes from it with an
// immediate check or rebuilds it from a full fetch
func (m *Monitor) initialize(ctx context.Context) bool {
	prev, ok := m.store.Load()

	total, err := m.fetcher.TotalCount(ctx)
	if err != nil {
		m.logFailure("Initialization failed, retrying next interval", err)
		return false
	}

	if ok {
		m.setSnapshot(prev)
		drift := total - prev.TotalCount
		if drift < 0 {
			drift = -drift
		}
		if drift <= m.cfg.DriftTolerance {
			m.logger.Info("Resuming from saved state",
				"stargazers", prev.Members.Len(),
				"saved_total", prev.TotalCount,
				"live_total", total)
			m.setPhase(PhaseChecking)
			m.runCheck(ctx)
			return true
		}
		m.logger.Info("Star count drifted beyond tolerance, rebuilding state",
			"saved_total", prev.TotalCount,
			"live_total", total,
			"tolerance", m.cfg.DriftTolerance)
	}

	items, err := m.fetcher.FetchAll(ctx)
	if err != nil {
		m.logFailure("Initialization failed, retrying next interval", err)
		return false
	}

	snap := diff.Rebuild(m.cfg.Repo, items, total, m.clock.Now())
	m.setSnapshot(snap)
	m.persist(snap)
	m.metrics.SetTotals(total, snap.Members.Len())
	m.updateRateLimitMetric()

	m.logger.Info("Initialized stargazers", "stargazers", snap.Members.Len(), "total_stars", total)
	return true
}

// runCheck runs one check cycle. A panic abandons the cycle but never stops the loop.
func (m *Monitor) runCheck(ctx context.Context) bool {
	start := m.clock.Now()
	err := m.guard(func() error { return m.check(ctx) })()

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, errCyclePanic):
		outcome = metrics.OutcomePanic
	case apperrors.IsCanceled(err):
		outcome = metrics.OutcomeCanceled
		m.logger.Info("Check canceled")
	default:
		outcome = metrics.OutcomeFailed
		m.metrics.FetchFailed()
		m.logger.Error("Check failed, keeping previous snapshot", "error", err)
	}
	m.metrics.ObserveCycle(outcome, m.clock.Now().Sub(start))
	return err == nil
}

// guard converts a panic in fn into an error carrying a correlation id
func (m *Monitor) guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				m.logger.Error("Recovered from panic during check",
					"correlation_id", correlationID,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()))
				err = fmt.Errorf("%w (correlation_id: %s)", errCyclePanic, correlationID)
			}
		}()
		return fn()
	}
}

func (m *Monitor) check(ctx context.Context) error {
	prev := m.Snapshot()
	if prev == nil {
		return apperrors.NewInternalError("check without snapshot", nil)
	}

	var (
		items []domain.Stargazer
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(m.guard(func() error {
		n, err := m.fetcher.TotalCount(gctx)
		total = n
		return err
	}))
	g.Go(m.guard(func() error {
		got, err := m.fetcher.FetchAll(gctx)
		items = got
		return err
	}))
	if err := g.Wait(); err != nil {
		return err
	}

	now := m.clock.Now()
	next, res := diff.Apply(prev, items, total, now, m.cfg.MemberInfoMaxAge)
	events := m.buildEvents(prev, next, res, now)

	m.setSnapshot(next)
	m.persist(next)

	m.feed.Add(events...)
	m.stats.Record(now, res.Added.Len(), res.Removed.Len())
	m.archiveEvents(ctx, events)

	m.metrics.AddChanges(res.Added.Len(), res.Removed.Len())
	m.metrics.SetTotals(total, next.Members.Len())
	m.updateRateLimitMetric()

	for _, e := range events {
		attrs := []any{"login", e.Login}
		if e.Member != nil {
			attrs = append(attrs, "profile", e.Member.HTMLURL)
		}
		m.logger.Info(e.Message, attrs...)
	}

	summary := FormatChange(res.Added.Len(), res.Removed.Len(), prev.TotalCount, total)
	if res.Empty() {
		m.logger.Debug("No stargazer changes", "change", summary, "stargazers", next.Members.Len())
	} else {
		m.logger.Info("Stargazer changes detected", "change", summary, "stargazers", next.Members.Len())
	}
	return nil
}

// buildEvents creates one event per added and removed login, in login order
func (m *Monitor) buildEvents(prev, next *domain.Snapshot, res diff.Result, now time.Time) []*domain.ActivityEvent {
	events := make([]*domain.ActivityEvent, 0, res.Added.Len()+res.Removed.Len())
	for _, login := range res.Added.Sorted() {
		info := diff.Describe(next.MemberInfo, login)
		events = append(events, domain.NewActivityEvent(m.newID(), m.cfg.Repo, domain.EventTypeStarAdded, login, &info, now))
	}
	for _, login := range res.Removed.Sorted() {
		info := diff.Describe(prev.MemberInfo, login)
		events = append(events, domain.NewActivityEvent(m.newID(), m.cfg.Repo, domain.EventTypeStarRemoved, login, &info, now))
	}
	return events
}

// FormatChange renders a change summary such as "+1 -1 = 0 (2 -> 2)"
func FormatChange(added, removed, oldTotal, newTotal int) string {
	net := added - removed
	netStr := fmt.Sprintf("%d", net)
	if net > 0 {
		netStr = "+" + netStr
	}
	return fmt.Sprintf("+%d -%d = %s (%d -> %d)", added, removed, netStr, oldTotal, newTotal)
}

// persist saves a copy of snap; failures are logged and otherwise ignored
func (m *Monitor) persist(snap *domain.Snapshot) {
	saved := snap.Clone()
	if err := m.store.Save(saved); err != nil {
		m.logger.Warn("Snapshot not persisted, continuing", "error", err)
		return
	}
	m.mu.Lock()
	if m.snapshot != nil {
		m.snapshot.SaveTime = saved.SaveTime
	}
	m.mu.Unlock()
}

func (m *Monitor) archiveEvents(ctx context.Context, events []*domain.ActivityEvent) {
	if m.archive == nil || len(events) == 0 {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := m.archive.SaveEvents(actx, events); err != nil {
		m.logger.Warn("Failed to archive events", "events", len(events), "error", err)
	}
}

// restoreActivity rebuilds stats and the activity feed from the archive
func (m *Monitor) restoreActivity(ctx context.Context) {
	if m.archive == nil {
		return
	}
	now := m.clock.Now()
	events, err := m.archive.GetEvents(ctx, m.cfg.Repo, now.AddDate(0, 0, -aggregator.MaxTrendDays-1), now)
	if err != nil {
		m.logger.Warn("Failed to restore activity from archive", "error", err)
		return
	}
	m.stats.Restore(events)
	if n := m.feed.Capacity(); len(events) > n {
		events = events[len(events)-n:]
	}
	m.feed.Add(events...)
	m.logger.Info("Restored activity from archive", "events", len(events))
}

func (m *Monitor) shutdown() {
	m.setPhase(PhaseShuttingDown)
	m.fetcher.Close()

	if snap := m.Snapshot(); snap != nil {
		m.persist(snap)
	}

	m.setPhase(PhaseStopped)
	m.logger.Info("Star monitor stopped")
}

func (m *Monitor) logFailure(msg string, err error) {
	if apperrors.IsCanceled(err) {
		m.logger.Info("Canceled", "phase", string(m.Phase()))
		return
	}
	m.metrics.FetchFailed()
	m.logger.Error(msg, "error", err)
}

func (m *Monitor) updateRateLimitMetric() {
	if rl := m.fetcher.RateLimit(); rl != nil {
		m.metrics.SetRateLimitRemaining(rl.Remaining)
	}
}

func (m *Monitor) setPhase(p Phase) {
	m.mu.Lock()
	prev := m.phase
	m.phase = p
	m.mu.Unlock()
	if prev != p {
		m.logger.Debug("Phase changed", "from", string(prev), "to", string(p))
	}
}

func (m *Monitor) setSnapshot(s *domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
}

// Phase returns the current lifecycle phase
func (m *Monitor) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Snapshot returns a copy of the current snapshot, or nil before initialization
func (m *Monitor) Snapshot() *domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Clone()
}
