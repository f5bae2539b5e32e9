package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

// BackupSuffix is appended to the state path while a save is in progress
const BackupSuffix = ".backup"

// Store loads and saves snapshots
type Store interface {
	// Load returns the saved snapshot, or false when there is no usable history
	Load() (*domain.Snapshot, bool)
	// Save persists the snapshot and refreshes its SaveTime
	Save(snapshot *domain.Snapshot) error
	// Path returns the primary file path
	Path() string
}

// stateFile is the on-disk layout
type stateFile struct {
	RepoFullName   string                       `json:"repo_full_name"`
	Stargazers     []string                     `json:"stargazers"`
	StargazersInfo map[string]domain.MemberInfo `json:"stargazers_info"`
	TotalStars     int                          `json:"total_stars"`
	LastCheckTime  *time.Time                   `json:"last_check_time,omitempty"`
	SaveTime       time.Time                    `json:"save_time"`
}

// FileStore implements Store on the local filesystem
type FileStore struct {
	path   string
	repo   string
	clock  clock.Clock
	logger *slog.Logger

	// writeFile is swapped in tests to simulate write failures
	writeFile func(name string, data []byte) error
}

// NewFileStore creates a store bound to one repository identity
func NewFileStore(path, repo string, clk clock.Clock, logger *slog.Logger) *FileStore {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:      path,
		repo:      repo,
		clock:     clk,
		logger:    logger.With("component", "state", "path", path),
		writeFile: syncWriteFile,
	}
}

// Path returns the primary file path
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) backupPath() string {
	return f.path + BackupSuffix
}

// Load reads the snapshot. Missing, corrupt or foreign files yield false.
func (f *FileStore) Load() (*domain.Snapshot, bool) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Error("Failed to read state file", "error", err)
			return nil, false
		}
		data, err = os.ReadFile(f.backupPath())
		if err != nil {
			f.logger.Info("State file does not exist, starting fresh")
			return nil, false
		}
		f.logger.Warn("State file missing but backup found, recovering from backup")
	}

	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		f.logger.Error("Failed to parse state file, ignoring history", "error", err)
		return nil, false
	}

	if sf.RepoFullName != f.repo {
		f.logger.Warn("State file belongs to a different repository, ignoring history",
			"expected", f.repo,
			"found", sf.RepoFullName)
		return nil, false
	}

	snap := domain.NewSnapshot(sf.RepoFullName)
	for _, login := range sf.Stargazers {
		snap.Members.Add(login)
	}
	for login, info := range sf.StargazersInfo {
		snap.MemberInfo[login] = info
	}
	snap.TotalCount = sf.TotalStars
	if sf.LastCheckTime != nil {
		snap.LastCheckTime = *sf.LastCheckTime
	}
	snap.SaveTime = sf.SaveTime

	attrs := []any{"stargazers", snap.Members.Len(), "total_stars", snap.TotalCount}
	if !snap.LastCheckTime.IsZero() {
		attrs = append(attrs, "last_check_time", snap.LastCheckTime.Format(time.RFC3339))
	}
	f.logger.Info("Loaded state", attrs...)

	return snap, true
}

// Save writes the snapshot using the backup-then-replace sequence
func (f *FileStore) Save(snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return apperrors.NewPersistenceError("refusing to save nil snapshot", nil)
	}
	if snapshot.Repo != f.repo {
		return apperrors.NewPersistenceError(
			fmt.Sprintf("snapshot for %q cannot be saved to store for %q", snapshot.Repo, f.repo), nil)
	}

	now := f.clock.Now()
	sf := stateFile{
		RepoFullName:   snapshot.Repo,
		Stargazers:     snapshot.Members.Sorted(),
		StargazersInfo: snapshot.MemberInfo,
		TotalStars:     snapshot.TotalCount,
		SaveTime:       now,
	}
	if sf.StargazersInfo == nil {
		sf.StargazersInfo = map[string]domain.MemberInfo{}
	}
	if !snapshot.LastCheckTime.IsZero() {
		t := snapshot.LastCheckTime
		sf.LastCheckTime = &t
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return f.fail("failed to marshal state", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return f.fail("failed to create state directory", err)
		}
	}

	hadPrevious := false
	if _, err := os.Stat(f.path); err == nil {
		if err := os.Rename(f.path, f.backupPath()); err != nil {
			return f.fail("failed to back up state file", err)
		}
		hadPrevious = true
	}

	if err := f.writeFile(f.path, data); err != nil {
		_ = os.Remove(f.path)
		if hadPrevious {
			if restoreErr := os.Rename(f.backupPath(), f.path); restoreErr != nil {
				f.logger.Error("Failed to restore state backup", "error", restoreErr)
			} else {
				f.logger.Info("Restored previous state from backup")
			}
		}
		return f.fail("failed to write state file", err)
	}

	// also clears a backup left behind by an interrupted save
	if err := os.Remove(f.backupPath()); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to remove state backup", "error", err)
	}

	snapshot.SaveTime = now
	return nil
}

func (f *FileStore) fail(message string, err error) error {
	f.logger.Error("Failed to save state", "reason", message, "error", err)
	return apperrors.NewPersistenceError(message, err)
}

// syncWriteFile writes data and fsyncs before closing
func syncWriteFile(name string, data []byte) error {
	// #nosec G304 -- path comes from operator configuration
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
