package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePage(page, n int) []domain.Stargazer {
	out := make([]domain.Stargazer, n)
	for i := range out {
		login := fmt.Sprintf("user-%d-%d", page, i)
		out[i] = domain.Stargazer{Login: login, ID: int64(page*1000 + i), HTMLURL: "https://github.com/" + login}
	}
	return out
}

// fakeCollector serves canned pages and per-page errors
type fakeCollector struct {
	mu      sync.Mutex
	pages   map[int][]domain.Stargazer
	errs    map[int]error
	total   int
	calls   map[int]int
	closed  int
	onFetch func(page int)
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		pages: make(map[int][]domain.Stargazer),
		errs:  make(map[int]error),
		calls: make(map[int]int),
	}
}

func (f *fakeCollector) ListStargazers(ctx context.Context, page, _ int) ([]domain.Stargazer, error) {
	f.mu.Lock()
	f.calls[page]++
	items, err, hook := f.pages[page], f.errs[page], f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(page)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeCollector) StargazerCount(context.Context) (int, error) {
	return f.total, nil
}

func (f *fakeCollector) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeCollector) callsFor(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}
