// Package metrics exposes monitor state as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "star_monitor"

// cycle outcomes
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
	OutcomePanic    = "panic"
)

// Recorder holds the collectors for one monitored repository.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	repo string

	stars              *prometheus.GaugeVec
	members            *prometheus.GaugeVec
	gained             *prometheus.CounterVec
	lost               *prometheus.CounterVec
	fetchFailures      *prometheus.CounterVec
	rateLimitWaits     *prometheus.CounterVec
	rateLimitRemaining *prometheus.GaugeVec
	cycleDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer, repo string) (*Recorder, error) {
	r := &Recorder{
		repo: repo,
		stars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stars_total",
			Help:      "Stargazer count reported by the repository summary",
		}, []string{"repo"}),
		members: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Number of stargazers in the last reconciled snapshot",
		}, []string{"repo"}),
		gained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stars_gained_total",
			Help:      "Total number of observed new stargazers",
		}, []string{"repo"}),
		lost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stars_lost_total",
			Help:      "Total number of observed removed stargazers",
		}, []string{"repo"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of abandoned cycles caused by fetch failures",
		}, []string{"repo"}),
		rateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "waits_total",
			Help:      "Total number of waits caused by API rate limiting",
		}, []string{"repo"}),
		rateLimitRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "remaining",
			Help:      "Remaining API requests in the current rate limit window",
		}, []string{"repo"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of monitor cycles by outcome",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"repo", "outcome"}),
	}

	for _, c := range []prometheus.Collector{
		r.stars, r.members, r.gained, r.lost, r.fetchFailures,
		r.rateLimitWaits, r.rateLimitRemaining, r.cycleDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetTotals records the reported total and the reconciled member count
func (r *Recorder) SetTotals(total, members int) {
	if r == nil {
		return
	}
	r.stars.WithLabelValues(r.repo).Set(float64(total))
	r.members.WithLabelValues(r.repo).Set(float64(members))
}

// AddChanges counts gained and lost stargazers
func (r *Recorder) AddChanges(gained, lost int) {
	if r == nil {
		return
	}
	if gained > 0 {
		r.gained.WithLabelValues(r.repo).Add(float64(gained))
	}
	if lost > 0 {
		r.lost.WithLabelValues(r.repo).Add(float64(lost))
	}
}

// FetchFailed counts an abandoned cycle
func (r *Recorder) FetchFailed() {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(r.repo).Inc()
}

// RateLimitWait counts a rate-limit backoff
func (r *Recorder) RateLimitWait(time.Duration) {
	if r == nil {
		return
	}
	r.rateLimitWaits.WithLabelValues(r.repo).Inc()
}

// SetRateLimitRemaining records the remaining API quota
func (r *Recorder) SetRateLimitRemaining(remaining int) {
	if r == nil {
		return
	}
	r.rateLimitRemaining.WithLabelValues(r.repo).Set(float64(remaining))
}

// ObserveCycle records the duration of a cycle
func (r *Recorder) ObserveCycle(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.WithLabelValues(r.repo, outcome).Observe(d.Seconds())
}
