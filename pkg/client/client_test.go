package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryLog struct {
	mu      sync.Mutex
	queries []string
}

func (q *queryLog) add(raw string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, raw)
}

func (q *queryLog) all() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queries...)
}

func newTestServer(t *testing.T) (*httptest.Server, *queryLog) {
	t.Helper()
	queries := &queryLog{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","phase":"sleeping"}`))
	})
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"repo":"octo/hello","phase":"sleeping","total_count":42,"member_count":41,"today":{"gained":3,"lost":1},"rate_limit":{"limit":5000,"remaining":4999,"reset":"2024-03-10T16:00:00Z"}}}`))
	})
	mux.HandleFunc("/api/v1/activity", func(w http.ResponseWriter, r *http.Request) {
		queries.add(r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"data":[{"id":"evt-1","repo":"octo/hello","type":"star_added","login":"carol","message":"carol starred octo/hello","timestamp":"2024-03-10T15:00:00Z"}]}`))
	})
	mux.HandleFunc("/api/v1/trend", func(w http.ResponseWriter, r *http.Request) {
		queries.add(r.URL.RawQuery)
		if r.URL.Query().Get("days") == "1000" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST","message":"days must be between 1 and 365"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"granularity":"day","labels":["2024-03-09","2024-03-10"],"gained":[0,3],"lost":[1,0]}}`))
	})
	mux.HandleFunc("/api/v1/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"snapshot":{"repo":"octo/hello","total_count":2,"members":["bob","carol"],"member_info":{}},"stats":{"daily":{"2024-03-10":{"gained":1,"lost":1}},"hourly":{}},"activity":[],"exported_at":"2024-03-10T15:00:00Z"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, queries
}

func TestClient_StatusAndHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	c := NewClient(srv.URL + "/")

	require.NoError(t, c.HealthCheck(context.Background()))

	status, err := c.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octo/hello", status.Repo)
	assert.Equal(t, 42, status.TotalCount)
	assert.Equal(t, 3, status.Today.Gained)
	require.NotNil(t, status.RateLimit)
	assert.Equal(t, 4999, status.RateLimit.Remaining)
}

func TestClient_ActivityAndTrend(t *testing.T) {
	t.Parallel()

	srv, queries := newTestServer(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	events, err := c.GetActivity(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "carol", events[0].Login)

	trend, err := c.GetTrend(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "2024-03-10"}, trend.Labels)
	assert.Equal(t, []int{0, 3}, trend.Gained)

	assert.Equal(t, []string{"limit=5", "days=2"}, queries.all())
}

func TestClient_Export(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	export, err := NewClient(srv.URL).GetExport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, export.Snapshot.Members)
	assert.Equal(t, 1, export.Stats.Daily["2024-03-10"].Lost)
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	c := NewClient(srv.URL)

	_, err := c.GetTrend(context.Background(), 1000)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)

	_, err = c.GetHourlyTrend(context.Background(), 24)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
