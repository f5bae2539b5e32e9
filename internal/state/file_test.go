package state

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, repo string) (*FileStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(base)
	path := filepath.Join(t.TempDir(), "star_monitor_octo_hello.json")
	return NewFileStore(path, repo, clk, testLogger()), clk
}

func sampleSnapshot() *domain.Snapshot {
	snap := domain.NewSnapshot("octo/hello")
	snap.Members.Add("alice")
	snap.Members.Add("bob")
	snap.MemberInfo["alice"] = domain.MemberInfo{ID: 1, HTMLURL: "https://github.com/alice", AvatarURL: "https://avatars/alice", LastSeen: base}
	snap.MemberInfo["bob"] = domain.MemberInfo{ID: 2, HTMLURL: "https://github.com/bob", AvatarURL: "https://avatars/bob", LastSeen: base}
	// removed earlier, metadata retained
	snap.MemberInfo["carol"] = domain.MemberInfo{ID: 3, HTMLURL: "https://github.com/carol"}
	snap.TotalCount = 2
	snap.LastCheckTime = base.Add(-time.Minute)
	return snap
}

func TestFileStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	snap, ok := store.Load()
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	in := sampleSnapshot()
	require.NoError(t, store.Save(in))
	assert.Equal(t, base, in.SaveTime)

	out, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, in.Repo, out.Repo)
	assert.Equal(t, in.Members, out.Members)
	assert.Equal(t, in.TotalCount, out.TotalCount)
	assert.True(t, in.LastCheckTime.Equal(out.LastCheckTime))
	assert.True(t, in.SaveTime.Equal(out.SaveTime))
	require.Len(t, out.MemberInfo, 3)
	for login, info := range in.MemberInfo {
		got := out.MemberInfo[login]
		assert.Equal(t, info.ID, got.ID, login)
		assert.Equal(t, info.HTMLURL, got.HTMLURL, login)
		assert.Equal(t, info.AvatarURL, got.AvatarURL, login)
		assert.True(t, info.LastSeen.Equal(got.LastSeen), login)
	}
}

func TestFileStore_SaveTwiceLeavesNoBackup(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	snap := sampleSnapshot()

	require.NoError(t, store.Save(snap))
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	require.NoError(t, store.Save(snap))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = os.Stat(store.Path() + BackupSuffix)
	assert.True(t, os.IsNotExist(err), "backup must be removed after a successful save")
}

func TestFileStore_IdentityMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	writer := NewFileStore(path, "x/y", clock.NewFake(base), testLogger())
	snap := domain.NewSnapshot("x/y")
	snap.Members.Add("alice")
	require.NoError(t, writer.Save(snap))

	reader := NewFileStore(path, "x/z", clock.NewFake(base), testLogger())
	got, ok := reader.Load()
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestFileStore_SaveRejectsForeignSnapshot(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	err := store.Save(domain.NewSnapshot("octo/other"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistence, apperrors.CodeOf(err))
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	snap, ok := store.Load()
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestFileStore_WriteFailureRestoresBackup(t *testing.T) {
	t.Parallel()

	store, clk := newStore(t, "octo/hello")
	original := sampleSnapshot()
	require.NoError(t, store.Save(original))

	store.writeFile = func(name string, _ []byte) error {
		// leave a partial file behind to make sure it is discarded
		_ = os.WriteFile(name, []byte("{"), 0600)
		return errors.New("disk full")
	}
	clk.Advance(time.Hour)

	changed := sampleSnapshot()
	changed.Members.Add("dave")
	changed.TotalCount = 3
	err := store.Save(changed)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistence, apperrors.CodeOf(err))
	assert.True(t, changed.SaveTime.IsZero(), "failed save must not refresh SaveTime")

	_, err = os.Stat(store.Path() + BackupSuffix)
	assert.True(t, os.IsNotExist(err))

	got, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 2, got.TotalCount)
	assert.False(t, got.Members.Has("dave"))
}

func TestFileStore_RecoversLeftoverBackup(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	require.NoError(t, store.Save(sampleSnapshot()))

	// simulate a crash between the backup rename and the new write
	require.NoError(t, os.Rename(store.Path(), store.Path()+BackupSuffix))

	got, ok := store.Load()
	require.True(t, ok)
	assert.True(t, got.Members.Has("alice"))

	require.NoError(t, store.Save(got))
	_, err := os.Stat(store.Path() + BackupSuffix)
	assert.True(t, os.IsNotExist(err), "stale backup must be removed after a successful save")

	// removing the primary file now resets history
	require.NoError(t, os.Remove(store.Path()))
	_, ok = store.Load()
	assert.False(t, ok)
}

func TestFileStore_OmitsUnknownLastSeen(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "octo/hello")
	require.NoError(t, store.Save(sampleSnapshot()))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "0001-01-01")

	var raw struct {
		Info map[string]map[string]any `json:"stargazers_info"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw.Info["carol"], "last_seen")
	assert.Contains(t, raw.Info["alice"], "last_seen")

	got, ok := store.Load()
	require.True(t, ok)
	assert.True(t, got.MemberInfo["carol"].LastSeen.IsZero())
}

func TestFileStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	store := NewFileStore(path, "octo/hello", clock.NewFake(base), testLogger())
	require.NoError(t, store.Save(sampleSnapshot()))

	_, err := os.Stat(path)
	require.NoError(t, err)
}
