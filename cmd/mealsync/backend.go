package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/steveyegge/mealsync/internal/catalog"
	"github.com/steveyegge/mealsync/internal/config"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/storage/docstore"
	"github.com/steveyegge/mealsync/internal/storage/memory"
	"github.com/steveyegge/mealsync/internal/storage/sqlite"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/telemetry"
)

// stores holds the opened adapters and the catalog for one command.
type stores struct {
	local   storage.LocalStore
	remote  storage.RemoteStore
	catalog *catalog.Catalog
}

func (s *stores) Close() error {
	var errs []error
	if s.remote != nil {
		errs = append(errs, s.remote.Close())
	}
	if s.local != nil {
		errs = append(errs, s.local.Close())
	}
	return errors.Join(errs...)
}

func retryPolicy(r config.Retry) storage.RetryPolicy {
	return storage.RetryPolicy{
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
		MaxElapsed:      r.MaxElapsed,
		MaxAttempts:     r.MaxAttempts,
	}
}

func accrualRule(p config.Points) repair.AccrualRule {
	return repair.AccrualRule{Daily: p.Daily, Cap: p.Cap, Floor: p.Floor, Ceiling: p.Ceiling}
}

// loadCatalog returns the built-in catalog extended by catalog.extra.
func loadCatalog(c config.Catalog) (*catalog.Catalog, error) {
	cat, err := catalog.Builtin()
	if err != nil {
		return nil, err
	}
	if c.Extra == "" {
		return cat, nil
	}
	return cat.LoadFile(c.Extra)
}

func openLocal(ctx context.Context, c *config.Config, command string, readOnly bool) (storage.LocalStore, error) {
	if c.Local.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Local.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create local store directory: %w", err)
		}
	}
	s, err := sqlite.Open(ctx, c.Local.Path, sqlite.Options{
		BusyTimeout: c.Local.BusyTimeout,
		Retry:       retryPolicy(c.Remote.Retry),
		NoLock:      readOnly,
		Command:     command,
	})
	if err != nil {
		return nil, err
	}
	return telemetry.WrapLocal(s), nil
}

func openRemote(ctx context.Context, c *config.Config, log *slog.Logger) (storage.RemoteStore, error) {
	var (
		s   storage.RemoteStore
		err error
	)
	switch c.Remote.Driver {
	case config.DriverMemory:
		log.Warn("remote.driver is memory; nothing reaches a shared store")
		s = memory.NewRemote()
	default:
		s, err = docstore.Open(ctx, docstore.Config{
			Driver:   string(c.Remote.Driver),
			DSN:      c.Remote.DSN,
			Path:     c.Remote.Path,
			Database: c.Remote.Database,
			Retry:    retryPolicy(c.Remote.Retry),
			Logger:   log,
		})
	}
	if err != nil {
		return nil, err
	}
	return telemetry.WrapRemote(s), nil
}

// storeMode says which stores a command needs.
type storeMode int

const (
	// modeRemote opens both stores.
	modeRemote storeMode = iota
	// modeLocal opens the local store and stands in an empty remote.
	modeLocal
	// modeReadOnly is modeLocal without taking the process lock.
	modeReadOnly
)

// openStores opens the stores mode asks for.
func openStores(ctx context.Context, c *config.Config, log *slog.Logger, command string, mode storeMode) (*stores, error) {
	cat, err := loadCatalog(c.Catalog)
	if err != nil {
		return nil, err
	}
	s := &stores{catalog: cat}
	if s.local, err = openLocal(ctx, c, command, mode == modeReadOnly); err != nil {
		return nil, err
	}
	if mode != modeRemote {
		s.remote = memory.NewRemote()
		return s, nil
	}
	if s.remote, err = openRemote(ctx, c, log); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newOrchestrator(s *stores, c *config.Config, log *slog.Logger) (*syncer.Orchestrator, error) {
	return syncer.New(s.local, s.remote, syncer.Options{
		Concurrency: c.Sync.Concurrency,
		PushEnabled: c.Sync.PushEnabled,
		Rule:        accrualRule(c.Points),
		Catalog:     s.catalog,
		Logger:      log,
	})
}

// mustStores opens the stores for the running command or exits.
func mustStores(command string, mode storeMode) *stores {
	if backend != nil {
		return backend
	}
	s, err := openStores(rootCtx, cfg, logger, command, mode)
	if err != nil {
		FatalError("%v", err)
	}
	backend = s
	return s
}

func mustOrchestrator(command string, mode storeMode) *syncer.Orchestrator {
	o, err := newOrchestrator(mustStores(command, mode), cfg, logger)
	if err != nil {
		FatalError("%v", err)
	}
	return o
}

func mustMigrator(command string) *migrate.Runner {
	s := mustStores(command, modeRemote)
	return migrate.New(s.local, s.remote, logger)
}
