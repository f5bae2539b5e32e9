package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	"github.com/kurihiro0119/github-star-monitor/internal/state"
)

func TestTrendStart(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), trendStart(now, 7, 0))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), trendStart(now, 1, 0))
	assert.Equal(t, time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC), trendStart(now, 7, 24))
}

func TestRenderTrend(t *testing.T) {
	var buf bytes.Buffer
	renderTrend(&buf, &domain.Trend{
		Granularity: "day",
		Labels:      []string{"2024-03-09", "2024-03-10"},
		Gained:      []int{0, 3},
		Lost:        []int{2, 1},
	}, domain.Counts{Gained: 3, Lost: 3})

	out := buf.String()
	assert.Contains(t, out, "2024-03-09")
	assert.Contains(t, out, "2024-03-10")
	assert.Contains(t, out, "+2")
	assert.Contains(t, out, "-2")
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &domain.RepoStatus{
		Repo:        "octo/hello",
		Phase:       "sleeping",
		TotalCount:  42,
		MemberCount: 41,
		RateLimit:   &domain.RateLimitState{Limit: 5000, Remaining: 4999},
	})

	out := buf.String()
	assert.Contains(t, out, "octo/hello")
	assert.Contains(t, out, "sleeping")
	assert.Contains(t, out, "4999/5000")
}

func TestShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewFileStore(path, "octo/hello", clock.Real(), logger)

	snap := domain.NewSnapshot("octo/hello")
	snap.Members = domain.NewSet("alice", "bob")
	snap.MemberInfo["alice"] = domain.MemberInfo{ID: 1, HTMLURL: "https://github.com/alice"}
	snap.TotalCount = 2
	require.NoError(t, store.Save(snap))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"show", "octo/hello", "--state-file", path, "--json"})
	t.Cleanup(func() {
		outputJSON = false
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var summary domain.SnapshotSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "octo/hello", summary.Repo)
	assert.Equal(t, []string{"alice", "bob"}, summary.Members)
	assert.Equal(t, 2, summary.TotalCount)
}

func TestShowCommand_NoSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"show", "octo/hello", "--state-file", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable snapshot")
}
