package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

var now = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func newTestStats() (*Stats, *clock.Fake) {
	clk := clock.NewFake(now)
	return NewStats(clk, time.UTC), clk
}

func TestStats_TrendZeroFilled(t *testing.T) {
	t.Parallel()

	s, _ := newTestStats()
	s.RecordGain(3)
	s.RecordLoss(1)
	s.Record(now.AddDate(0, 0, -2), 5, 0)
	s.Record(now.AddDate(0, 0, -30), 7, 7) // outside the window

	trend, err := s.Trend(4)
	require.NoError(t, err)

	assert.Equal(t, GranularityDay, trend.Granularity)
	assert.Equal(t, []string{"2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10"}, trend.Labels)
	assert.Equal(t, []int{0, 5, 0, 3}, trend.Gained)
	assert.Equal(t, []int{0, 0, 0, 1}, trend.Lost)
}

func TestStats_TrendRejectsInvalidWindow(t *testing.T) {
	t.Parallel()

	s, _ := newTestStats()
	for _, days := range []int{0, -1, MaxTrendDays + 1} {
		_, err := s.Trend(days)
		require.Error(t, err, days)
		assert.True(t, apperrors.IsBadRequest(err))
	}
	_, err := s.HourlyTrend(0)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestStats_HourlyTrend(t *testing.T) {
	t.Parallel()

	s, _ := newTestStats()
	s.Record(now.Add(-time.Hour), 2, 0)
	s.Record(now, 1, 1)
	s.Record(now.Add(-90*time.Minute), 0, 4)

	trend, err := s.HourlyTrend(3)
	require.NoError(t, err)
	assert.Equal(t, GranularityHour, trend.Granularity)
	assert.Equal(t, []string{"2024-03-10 13", "2024-03-10 14", "2024-03-10 15"}, trend.Labels)
	assert.Equal(t, []int{0, 2, 1}, trend.Gained)
	assert.Equal(t, []int{0, 4, 1}, trend.Lost)
}

func TestStats_LocalCalendar(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*3600)
	clk := clock.NewFake(now)
	s := NewStats(clk, tokyo)

	// 15:30 UTC is 00:30 on the next day in Tokyo
	s.RecordGain(1)
	today := s.Today()
	assert.Equal(t, 1, today.Gained)
	assert.Contains(t, s.Counters().Daily, "2024-03-11")
}

func TestStats_TodayAndCounters(t *testing.T) {
	t.Parallel()

	s, clk := newTestStats()
	s.RecordGain(2)
	s.RecordLoss(1)
	assert.Equal(t, domain.Counts{Gained: 2, Lost: 1}, s.Today())
	assert.Equal(t, 1, s.Today().Net())

	counters := s.Counters()
	counters.Daily["2024-03-10"] = domain.Counts{Gained: 100}
	assert.Equal(t, 2, s.Today().Gained, "Counters must return a copy")

	clk.Advance(24 * time.Hour)
	assert.Equal(t, domain.Counts{}, s.Today())
}

func TestStats_IgnoresEmptyRecords(t *testing.T) {
	t.Parallel()

	s, _ := newTestStats()
	s.RecordGain(0)
	s.Record(now, -3, 0)
	assert.Empty(t, s.Counters().Daily)
}

func TestStats_PrunesOldPeriods(t *testing.T) {
	t.Parallel()

	s, clk := newTestStats()
	s.RecordGain(1)
	clk.Advance(400 * 24 * time.Hour)
	s.RecordGain(1)

	counters := s.Counters()
	assert.Len(t, counters.Daily, 1)
	assert.Len(t, counters.Hourly, 1)
}

func TestStats_Restore(t *testing.T) {
	t.Parallel()

	s, _ := newTestStats()
	s.RecordGain(10)

	s.Restore([]*domain.ActivityEvent{
		{Type: domain.EventTypeStarAdded, Login: "alice", Timestamp: now},
		{Type: domain.EventTypeStarAdded, Login: "bob", Timestamp: now.Add(-24 * time.Hour)},
		{Type: domain.EventTypeStarRemoved, Login: "carol", Timestamp: now},
		nil,
	})

	assert.Equal(t, domain.Counts{Gained: 1, Lost: 1}, s.Today())
	trend, err := s.Trend(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, trend.Gained)
}
