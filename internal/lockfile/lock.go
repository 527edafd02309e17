// Package lockfile guards a local store against being opened by two
// processes at once.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock held by another process")

// LockInfo is written into the lock file by the owner.
type LockInfo struct {
	PID       int       `json:"pid"`
	Database  string    `json:"database"`
	Command   string    `json:"command,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held exclusive lock. Release it with Release.
type Lock struct {
	path string
	f    *os.File
}

// PathFor returns the lock file used for a database path.
func PathFor(dbPath string) string {
	return dbPath + ".lock"
}

// Acquire takes an exclusive non-blocking lock on the lock file of dbPath and
// records the owner in it.
func Acquire(dbPath, command string) (*Lock, error) {
	path := PathFor(dbPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			if info, rerr := ReadLockInfo(path); rerr == nil && info.PID > 0 {
				return nil, fmt.Errorf("%w (pid %d)", ErrLockBusy, info.PID)
			}
		}
		return nil, err
	}

	info := LockInfo{
		PID:       os.Getpid(),
		Database:  dbPath,
		Command:   command,
		StartedAt: time.Now().UTC(),
	}
	data, _ := json.Marshal(info)
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
		_ = f.Sync()
	}
	return &Lock{path: path, f: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in place
// so a concurrent Acquire never locks an unlinked inode.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := flockUnlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// ReadLockInfo reads the owner recorded in a lock file. A bare PID is
// accepted for files written by older builds.
func ReadLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - lock path derived from the database path
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		return &info, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &LockInfo{PID: pid}, nil
}
