// Package docstore implements the remote document store on a SQL table.
//
// Every document lives in one row of the documents table, addressed by its
// path users/{userId}/{collection}/{entityId}. The table is served either by
// a MySQL-compatible server (MySQL, a dolt sql-server) through
// go-sql-driver/mysql, or by an embedded Dolt database on the local
// filesystem when the binary is built with cgo.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

// Drivers accepted by Open.
const (
	DriverMySQL = "mysql"
	DriverDolt  = "dolt"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	path       VARCHAR(512) NOT NULL PRIMARY KEY,
	user_id    VARCHAR(255) NOT NULL,
	collection VARCHAR(64)  NOT NULL,
	doc_id     VARCHAR(255) NOT NULL,
	body       LONGTEXT     NOT NULL,
	updated_at DATETIME(6)  NOT NULL,
	INDEX idx_documents_user_collection (user_id, collection)
)`

// Config selects and configures the backing database.
type Config struct {
	// Driver is DriverMySQL or DriverDolt.
	Driver string
	// DSN is a go-sql-driver/mysql DSN for DriverMySQL.
	DSN string
	// Path is the embedded database directory for DriverDolt.
	Path string
	// Database is the database name used by DriverDolt.
	Database string
	// Retry bounds retries of transient failures.
	Retry storage.RetryPolicy
	// Logger receives retry notices. Nil discards them.
	Logger *slog.Logger
}

// Store is a storage.RemoteStore backed by a documents table.
type Store struct {
	db     *sql.DB
	closer io.Closer // embedded connector, released after db
	retry  storage.RetryPolicy
	log    *slog.Logger
	// commit records a Dolt commit after each batch.
	commit bool
}

var _ storage.RemoteStore = (*Store)(nil)

// Open connects to the configured database and creates the documents table
// if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Retry == (storage.RetryPolicy{}) {
		cfg.Retry = storage.DefaultRetryPolicy
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		db     *sql.DB
		closer io.Closer
		err    error
	)
	switch cfg.Driver {
	case DriverMySQL, "":
		db, err = openMySQL(cfg.DSN)
	case DriverDolt:
		db, closer, err = openEmbedded(ctx, cfg.Path, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown remote driver %q (expected %s or %s)", cfg.Driver, DriverMySQL, DriverDolt)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, closer: closer, retry: cfg.Retry, log: log, commit: cfg.Driver == DriverDolt}
	if err := s.exec(ctx, "initialize schema", schema); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open database. The caller keeps ownership of closing
// anything other than db.
func New(db *sql.DB, retry storage.RetryPolicy, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, retry: retry, log: log}
}

func openMySQL(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("remote DSN is required for the mysql driver")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid remote DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// EnsureSchema creates the documents table. Open calls it; New callers must.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.exec(ctx, "initialize schema", schema)
}

func (s *Store) notify(op string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		s.log.Warn("remote store retry", "op", op, "wait", wait, "error", err)
	}
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	return storage.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return classify(op, err)
	}, s.notify(op))
}

// GetDocument implements storage.RemoteStore.
func (s *Store) GetDocument(ctx context.Context, userID string, c types.Collection, id string) (storage.Document, error) {
	path := storage.RemotePath(userID, c, id)
	op := "get " + path
	body, err := storage.RetryValue(ctx, s.retry, func() (string, error) {
		var body string
		err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE path = ?`, path).Scan(&body)
		return body, classify(op, err)
	}, s.notify(op))
	if err != nil {
		return storage.Document{}, err
	}
	return storage.Document{ID: id, Body: []byte(body)}, nil
}

// PutDocument implements storage.RemoteStore.
func (s *Store) PutDocument(ctx context.Context, userID string, c types.Collection, doc storage.Document) error {
	return s.PutBatch(ctx, userID, c, []storage.Document{doc})
}

// DeleteDocument implements storage.RemoteStore.
func (s *Store) DeleteDocument(ctx context.Context, userID string, c types.Collection, id string) error {
	path := storage.RemotePath(userID, c, id)
	return s.exec(ctx, "delete "+path, `DELETE FROM documents WHERE path = ?`, path)
}

// ListCollection implements storage.RemoteStore.
func (s *Store) ListCollection(ctx context.Context, userID string, c types.Collection) ([]storage.Document, error) {
	op := "list " + storage.RemotePath(userID, c, "")
	return storage.RetryValue(ctx, s.retry, func() ([]storage.Document, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT doc_id, body FROM documents WHERE user_id = ? AND collection = ? ORDER BY doc_id`,
			userID, string(c))
		if err != nil {
			return nil, classify(op, err)
		}
		defer func() { _ = rows.Close() }()

		var docs []storage.Document
		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				return nil, classify(op, err)
			}
			docs = append(docs, storage.Document{ID: id, Body: []byte(body)})
		}
		return docs, classify(op, rows.Err())
	}, s.notify(op))
}

// PutBatch implements storage.RemoteStore. The batch is one transaction.
func (s *Store) PutBatch(ctx context.Context, userID string, c types.Collection, docs []storage.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("put batch %s: document without id", c)
		}
	}
	op := "put batch " + storage.RemotePath(userID, c, "")
	err := storage.Retry(ctx, s.retry, func() error {
		return s.withTx(ctx, op, func(tx *sql.Tx) error {
			now := time.Now().UTC()
			for _, d := range docs {
				path := storage.RemotePath(userID, c, d.ID)
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO documents (path, user_id, collection, doc_id, body, updated_at)
					VALUES (?, ?, ?, ?, ?, ?)
					ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)
				`, path, userID, string(c), d.ID, string(d.Body), now); err != nil {
					return classify("put "+path, err)
				}
			}
			return nil
		})
	}, s.notify(op))
	if err != nil {
		return err
	}
	if s.commit {
		s.doltCommit(ctx, fmt.Sprintf("mealsync: %s/%s (%d documents)", userID, c, len(docs)))
	}
	return nil
}

// doltCommit snapshots the working set. Failing to commit leaves the rows in
// the working set, which is still durable, so it is only logged.
func (s *Store) doltCommit(ctx context.Context, msg string) {
	_, err := s.db.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?)", msg)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "nothing to commit") {
		s.log.Warn("dolt commit failed", "error", err)
	}
}

func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin "+op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return classify("commit "+op, tx.Commit())
}

// Close closes the database and any embedded engine resources.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	return errors.Join(errs...)
}
