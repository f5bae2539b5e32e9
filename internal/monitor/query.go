package monitor

import (
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// Status returns the queryable view of the monitor
func (m *Monitor) Status() domain.RepoStatus {
	m.mu.RLock()
	status := domain.RepoStatus{
		Repo:  m.cfg.Repo,
		Phase: string(m.phase),
	}
	if m.snapshot != nil {
		status.TotalCount = m.snapshot.TotalCount
		status.MemberCount = m.snapshot.Members.Len()
		if !m.snapshot.LastCheckTime.IsZero() {
			t := m.snapshot.LastCheckTime
			status.LastCheckTime = &t
		}
	}
	m.mu.RUnlock()

	status.RateLimit = m.fetcher.RateLimit()
	status.Today = m.stats.Today()
	return status
}

// Activity returns up to limit recent events, newest first
func (m *Monitor) Activity(limit int) []*domain.ActivityEvent {
	return m.feed.List(limit)
}

// Trend returns the daily gained/lost series for the trailing days
func (m *Monitor) Trend(days int) (*domain.Trend, error) {
	return m.stats.Trend(days)
}

// HourlyTrend returns the hourly gained/lost series for the trailing hours
func (m *Monitor) HourlyTrend(hours int) (*domain.Trend, error) {
	return m.stats.HourlyTrend(hours)
}

// Export combines snapshot, stats and activity history
func (m *Monitor) Export() *domain.Export {
	return &domain.Export{
		Snapshot:   domain.Summarize(m.Snapshot()),
		Stats:      m.stats.Counters(),
		Activity:   m.feed.List(0),
		ExportedAt: m.clock.Now(),
	}
}
