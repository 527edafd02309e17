// Package sqlite implements the local store on an embedded SQLite database.
//
// Collection snapshots live in the kv table as whole JSON values; a write
// replaces a row inside one transaction, so readers see either the previous
// snapshot or the new one. The metadata table holds last-sync markers and the
// installation's migration flag.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/mealsync/internal/lockfile"
	"github.com/steveyegge/mealsync/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Options configures Open.
type Options struct {
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
	// Retry governs retries of busy errors that outlast BusyTimeout.
	Retry storage.RetryPolicy
	// NoLock skips the process lock. Read-only tools use it.
	NoLock bool
	// Command is recorded in the lock file.
	Command string
}

// Store is a storage.LocalStore backed by SQLite.
type Store struct {
	db    *sql.DB
	path  string
	lock  *lockfile.Lock
	retry storage.RetryPolicy
}

var _ storage.LocalStore = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database and never takes the process lock.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.Retry == (storage.RetryPolicy{}) {
		opts.Retry = storage.RetryPolicy{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     time.Second,
			MaxElapsed:      10 * time.Second,
			MaxAttempts:     4,
		}
	}

	memory := path == ":memory:"
	var lock *lockfile.Lock
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		if !opts.NoLock {
			l, err := lockfile.Acquire(path, opts.Command)
			if err != nil {
				return nil, fmt.Errorf("open local store %s: %w: %v", path, storage.ErrLocked, err)
			}
			lock = l
		}
	}

	db, err := sql.Open("sqlite3", connString(path, opts.BusyTimeout))
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path, lock: lock, retry: opts.Retry}
	if err := s.init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func connString(path string, busy time.Duration) string {
	busyMs := int64(busy / time.Millisecond)
	if path == ":memory:" {
		return fmt.Sprintf("file::memory:?_pragma=busy_timeout(%d)", busyMs)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path, busyMs)
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapDBError("ping database", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrapDBError("initialize schema", err)
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Read implements storage.LocalStore.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	return storage.RetryValue(ctx, s.retry, func() ([]byte, error) {
		var value []byte
		err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
		if err != nil {
			return nil, wrapDBError("read "+key, err)
		}
		return value, nil
	}, nil)
}

// Write implements storage.LocalStore.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	return s.WriteBatch(ctx, map[string][]byte{key: value})
}

// WriteBatch implements storage.LocalStore. All keys are replaced in one
// transaction.
func (s *Store) WriteBatch(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return storage.Retry(ctx, s.retry, func() error {
		return s.withTx(ctx, "write batch", func(tx *sql.Tx) error {
			now := time.Now().UTC().Format(time.RFC3339Nano)
			for _, k := range keys {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
					ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
				`, k, values[k], now); err != nil {
					return wrapDBError("write "+k, err)
				}
			}
			return nil
		})
	}, nil)
}

// Delete implements storage.LocalStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	return storage.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return wrapDBError("delete "+key, err)
	}, nil)
}

// Keys implements storage.LocalStore.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, wrapDBError("list keys", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, wrapDBError("scan key", err)
		}
		keys = append(keys, k)
	}
	return keys, wrapDBError("list keys", rows.Err())
}

// GetMetadata implements storage.LocalStore.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", wrapDBError("get metadata "+key, err)
	}
	return value, nil
}

// SetMetadata implements storage.LocalStore.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return storage.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		return wrapDBError("set metadata "+key, err)
	}, nil)
}

// DeleteMetadata implements storage.LocalStore.
func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	return wrapDBError("delete metadata "+key, err)
}

// Close closes the database and releases the process lock.
func (s *Store) Close() error {
	var errs []string
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := s.lock.Release(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close local store: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin "+op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrapDBError("commit "+op, tx.Commit())
}
