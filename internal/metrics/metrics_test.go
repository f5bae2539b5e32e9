package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := New(reg, "octo/hello")
	require.NoError(t, err)

	r.SetTotals(120, 118)
	r.AddChanges(3, 1)
	r.AddChanges(2, 0)
	r.FetchFailed()
	r.RateLimitWait(30 * time.Second)
	r.SetRateLimitRemaining(4200)
	r.ObserveCycle(OutcomeOK, 2*time.Second)

	assert.Equal(t, 120.0, testutil.ToFloat64(r.stars.WithLabelValues("octo/hello")))
	assert.Equal(t, 118.0, testutil.ToFloat64(r.members.WithLabelValues("octo/hello")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.gained.WithLabelValues("octo/hello")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lost.WithLabelValues("octo/hello")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues("octo/hello")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimitWaits.WithLabelValues("octo/hello")))
	assert.Equal(t, 4200.0, testutil.ToFloat64(r.rateLimitRemaining.WithLabelValues("octo/hello")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.cycleDuration))
}

func TestRecorder_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg, "octo/hello")
	require.NoError(t, err)

	_, err = New(reg, "octo/hello")
	assert.Error(t, err)
}

func TestRecorder_NilSafe(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.SetTotals(1, 1)
		r.AddChanges(1, 1)
		r.FetchFailed()
		r.RateLimitWait(time.Second)
		r.SetRateLimitRemaining(1)
		r.ObserveCycle(OutcomeFailed, time.Second)
	})
}
