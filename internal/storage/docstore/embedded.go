//go:build cgo

package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	embedded "github.com/dolthub/driver"
)

const embeddedOpenMaxElapsed = 30 * time.Second

var databaseName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func newEmbeddedOpenBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = embeddedOpenMaxElapsed
	return bo
}

// openEmbedded opens the embedded Dolt database at dir, creating it first.
func openEmbedded(ctx context.Context, dir, database string) (*sql.DB, io.Closer, error) {
	if dir == "" {
		return nil, nil, errors.New("remote path is required for the dolt driver")
	}
	if database == "" {
		database = "mealsync"
	}
	if !databaseName.MatchString(database) {
		return nil, nil, fmt.Errorf("invalid dolt database name %q", database)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return nil, nil, fmt.Errorf("remote path %q is a file, not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create remote directory: %w", err)
	}
	// The driver changes into the directory, so a relative path would nest.
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	base := fmt.Sprintf("file://%s?commitname=%s&commitemail=%s",
		abs, url.QueryEscape("mealsync"), url.QueryEscape("mealsync@localhost"))

	if err := withEmbedded(ctx, base, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database))
		return err
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to create dolt database: %w", err)
	}

	cfg, err := embedded.ParseDSN(base + "&database=" + database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Dolt DSN: %w", err)
	}
	cfg.BackOff = newEmbeddedOpenBackoff()
	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Dolt connector: %w", err)
	}
	db := sql.OpenDB(connector)
	// Embedded Dolt is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// The driver keeps the context of the first connection for the session,
	// so it must not be the caller's.
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, nil, fmt.Errorf("failed to ping Dolt database: %w", err)
	}
	return db, connector, nil
}

// withEmbedded runs fn against a short-lived embedded connection and
// releases the engine's filesystem locks afterwards.
func withEmbedded(ctx context.Context, dsn string, fn func(*sql.DB) error) error {
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return err
	}
	cfg.BackOff = newEmbeddedOpenBackoff()
	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return err
	}
	db := sql.OpenDB(connector)
	ferr := fn(db)
	// Close the pool first, then the connector that owns the locks.
	return errors.Join(ferr, db.Close(), connector.Close())
}
