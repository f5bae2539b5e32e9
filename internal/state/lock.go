package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/kurihiro0119/github-star-monitor/internal/errors"
)

// LockSuffix names the advisory lock file kept next to the state file
const LockSuffix = ".lock"

// ErrLocked is returned when another process already holds the state file
var ErrLocked = errors.New("state file is locked by another process")

// Lock is an exclusive advisory lock on a state file
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock for the state file at path without blocking
func AcquireLock(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, apperrors.NewPersistenceError("failed to create state directory", err)
		}
	}

	fl := flock.New(path + LockSuffix)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to lock state file", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
