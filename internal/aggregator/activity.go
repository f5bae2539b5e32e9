package aggregator

import (
	"sync"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// DefaultFeedCapacity is the number of events kept when no capacity is given
const DefaultFeedCapacity = 100

// Feed is a bounded ring buffer of recent activity, listed newest first
type Feed struct {
	mu    sync.RWMutex
	buf   []*domain.ActivityEvent
	head  int
	count int
}

// NewFeed creates a feed holding at most capacity events
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{buf: make([]*domain.ActivityEvent, capacity)}
}

// Add appends events in order; the oldest are overwritten once full
func (f *Feed) Add(events ...*domain.ActivityEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range events {
		if e == nil {
			continue
		}
		f.buf[f.head] = e
		f.head = (f.head + 1) % len(f.buf)
		if f.count < len(f.buf) {
			f.count++
		}
	}
}

// List returns up to limit events, newest first. limit <= 0 returns all.
func (f *Feed) List(limit int) []*domain.ActivityEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.ActivityEvent, 0, n)
	size := len(f.buf)
	for i := 0; i < n; i++ {
		out = append(out, f.buf[(f.head-1-i+size)%size])
	}
	return out
}

// Len returns the number of stored events
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Capacity returns the maximum number of stored events
func (f *Feed) Capacity() int {
	return len(f.buf)
}
