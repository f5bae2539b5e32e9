// Package state persists the monitor snapshot to a JSON file.
//
// Saves follow a backup-then-replace sequence: the current file is renamed to
// "<path>.backup", the new snapshot is written to the primary path and the
// backup is removed. If the write fails the backup is moved back so the last
// valid snapshot stays readable. A leftover backup found at load time (the
// process died mid-save) is used when the primary file is missing.
//
// A single writer per state file is enforced with an advisory lock file
// ("<path>.lock") taken by AcquireLock.
package state
