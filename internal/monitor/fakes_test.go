package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stargazers(logins ...string) []domain.Stargazer {
	out := make([]domain.Stargazer, len(logins))
	for i, l := range logins {
		out[i] = domain.Stargazer{Login: l, ID: int64(i + 1), HTMLURL: "https://github.com/" + l}
	}
	return out
}

type fetchResult struct {
	items []domain.Stargazer
	err   error
	panic bool
}

type totalResult struct {
	total int
	err   error
}

// fakeFetcher replays scripted results; the last result repeats
type fakeFetcher struct {
	mu         sync.Mutex
	fetches    []fetchResult
	totals     []totalResult
	fetchCalls int
	totalCalls int
	closed     int
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]domain.Stargazer, error) {
	f.mu.Lock()
	f.fetchCalls++
	r := f.fetches[0]
	if len(f.fetches) > 1 {
		f.fetches = f.fetches[1:]
	}
	f.mu.Unlock()

	if r.panic {
		panic("page decoder exploded")
	}
	if ctx.Err() != nil {
		return nil, apperrors.NewCanceledError("fetch stargazers")
	}
	return r.items, r.err
}

func (f *fakeFetcher) TotalCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.totalCalls++
	r := f.totals[0]
	if len(f.totals) > 1 {
		f.totals = f.totals[1:]
	}
	f.mu.Unlock()

	if ctx.Err() != nil {
		return 0, apperrors.NewCanceledError("get repository summary")
	}
	return r.total, r.err
}

func (f *fakeFetcher) RateLimit() *domain.RateLimitState {
	return &domain.RateLimitState{Limit: 5000, Remaining: 4321}
}

func (f *fakeFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeFetcher) counts() (fetches, totals, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.totalCalls, f.closed
}

// memStore is an in-memory state.Store
type memStore struct {
	mu       sync.Mutex
	saved    *domain.Snapshot
	saves    int
	failSave bool
	now      time.Time
}

func (s *memStore) Load() (*domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return nil, false
	}
	return s.saved.Clone(), true
}

func (s *memStore) Save(snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return apperrors.NewPersistenceError("disk full", nil)
	}
	s.saves++
	snap.SaveTime = s.now
	s.saved = snap.Clone()
	return nil
}

func (s *memStore) Path() string {
	return "memory"
}

func (s *memStore) last() (*domain.Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.Clone(), s.saves
}

// fakeArchive records saved events and serves preloaded ones
type fakeArchive struct {
	mu     sync.Mutex
	stored []*domain.ActivityEvent
	saved  []*domain.ActivityEvent
}

func (a *fakeArchive) SaveEvents(_ context.Context, events []*domain.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, events...)
	return nil
}

func (a *fakeArchive) GetEvents(_ context.Context, repo string, since, until time.Time) ([]*domain.ActivityEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.ActivityEvent
	for _, e := range a.stored {
		if e.Repo == repo && !e.Timestamp.Before(since) && !e.Timestamp.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("evt-%d", n)
	}
}
