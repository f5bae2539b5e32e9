package aggregator

import (
	"fmt"
	"sync"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

const (
	GranularityDay  = "day"
	GranularityHour = "hour"

	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02 15"

	// MaxTrendDays and MaxTrendHours bound the trailing windows
	MaxTrendDays  = 365
	MaxTrendHours = 24 * 31

	dailyRetention  = MaxTrendDays + 1
	hourlyRetention = MaxTrendHours + 24
)

// Stats keeps per-day and per-hour gained/lost counters in local time
type Stats struct {
	mu     sync.RWMutex
	daily  map[string]domain.Counts
	hourly map[string]domain.Counts
	clock  clock.Clock
	loc    *time.Location
}

// NewStats creates an empty aggregator. A nil loc means time.Local.
func NewStats(clk clock.Clock, loc *time.Location) *Stats {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Stats{
		daily:  make(map[string]domain.Counts),
		hourly: make(map[string]domain.Counts),
		clock:  clk,
		loc:    loc,
	}
}

// RecordGain adds n gained stars at the current time
func (s *Stats) RecordGain(n int) {
	s.Record(s.clock.Now(), n, 0)
}

// RecordLoss adds n lost stars at the current time
func (s *Stats) RecordLoss(n int) {
	s.Record(s.clock.Now(), 0, n)
}

// Record adds gained and lost counts to the periods containing at
func (s *Stats) Record(at time.Time, gained, lost int) {
	if gained <= 0 && lost <= 0 {
		return
	}
	if gained < 0 {
		gained = 0
	}
	if lost < 0 {
		lost = 0
	}
	at = at.In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(at, gained, lost)
	s.prune(s.clock.Now().In(s.loc))
}

func (s *Stats) add(at time.Time, gained, lost int) {
	day := at.Format(dayLayout)
	c := s.daily[day]
	c.Gained += gained
	c.Lost += lost
	s.daily[day] = c

	hour := at.Format(hourLayout)
	h := s.hourly[hour]
	h.Gained += gained
	h.Lost += lost
	s.hourly[hour] = h
}

// prune drops periods older than any window that can be queried
func (s *Stats) prune(now time.Time) {
	dayCutoff := truncateTime(now, GranularityDay).AddDate(0, 0, -dailyRetention).Format(dayLayout)
	for k := range s.daily {
		if k < dayCutoff {
			delete(s.daily, k)
		}
	}
	hourCutoff := truncateTime(now, GranularityHour).Add(-hourlyRetention * time.Hour).Format(hourLayout)
	for k := range s.hourly {
		if k < hourCutoff {
			delete(s.hourly, k)
		}
	}
}

// Restore rebuilds the counters from archived events, replacing current state
func (s *Stats) Restore(events []*domain.ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.daily = make(map[string]domain.Counts)
	s.hourly = make(map[string]domain.Counts)
	for _, e := range events {
		if e == nil {
			continue
		}
		switch e.Type {
		case domain.EventTypeStarAdded:
			s.add(e.Timestamp.In(s.loc), 1, 0)
		case domain.EventTypeStarRemoved:
			s.add(e.Timestamp.In(s.loc), 0, 1)
		}
	}
	s.prune(s.clock.Now().In(s.loc))
}

// Trend returns the zero-filled daily series for the trailing window of days
func (s *Stats) Trend(days int) (*domain.Trend, error) {
	if days <= 0 || days > MaxTrendDays {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("days must be between 1 and %d", MaxTrendDays))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series(s.daily, GranularityDay, dayLayout, days), nil
}

// HourlyTrend returns the zero-filled hourly series for the trailing window of hours
func (s *Stats) HourlyTrend(hours int) (*domain.Trend, error) {
	if hours <= 0 || hours > MaxTrendHours {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("hours must be between 1 and %d", MaxTrendHours))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series(s.hourly, GranularityHour, hourLayout, hours), nil
}

func (s *Stats) series(counts map[string]domain.Counts, granularity, layout string, n int) *domain.Trend {
	trend := &domain.Trend{
		Granularity: granularity,
		Labels:      make([]string, 0, n),
		Gained:      make([]int, 0, n),
		Lost:        make([]int, 0, n),
	}

	current := truncateTime(s.clock.Now().In(s.loc), granularity)
	for i := 1; i < n; i++ {
		current = getPrevPeriod(current, granularity)
	}
	for i := 0; i < n; i++ {
		label := current.Format(layout)
		c := counts[label]
		trend.Labels = append(trend.Labels, label)
		trend.Gained = append(trend.Gained, c.Gained)
		trend.Lost = append(trend.Lost, c.Lost)
		current = getNextPeriod(current, granularity)
	}
	return trend
}

// Today returns the counts of the current local day
func (s *Stats) Today() domain.Counts {
	day := s.clock.Now().In(s.loc).Format(dayLayout)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daily[day]
}

// Counters returns a copy of the raw counters
func (s *Stats) Counters() domain.StatsExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.StatsExport{
		Daily:  make(map[string]domain.Counts, len(s.daily)),
		Hourly: make(map[string]domain.Counts, len(s.hourly)),
	}
	for k, v := range s.daily {
		out.Daily[k] = v
	}
	for k, v := range s.hourly {
		out.Hourly[k] = v
	}
	return out
}

// truncateTime truncates a time to the start of the period based on granularity
func truncateTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// getNextPeriod returns the start of the next period
func getNextPeriod(t time.Time, granularity string) time.Time {
	switch granularity {
	case GranularityHour:
		return truncateTime(t.Add(time.Hour), granularity)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// getPrevPeriod returns the start of the previous period
func getPrevPeriod(t time.Time, granularity string) time.Time {
	switch granularity {
	case GranularityHour:
		return truncateTime(t.Add(-time.Hour), granularity)
	default:
		return t.AddDate(0, 0, -1)
	}
}
