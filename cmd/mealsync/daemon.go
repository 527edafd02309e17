package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/syncer"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Short:   "Keep syncing in the foreground",
	GroupID: "sync",
	Long: `Run in the foreground and sync on daemon.interval. Touching daemon.trigger
starts a sync after daemon.debounce of quiet. On start the legacy migration
runs if it never completed and the point balance is rebuilt, so the balance
is fresh before the first network round trip.

Stop with Ctrl+C or SIGTERM; a sync in progress finishes first.`,
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		if v, _ := cmd.Flags().GetDuration("interval"); v > 0 {
			cfg.Daemon.Interval = v
		}
		if v, _ := cmd.Flags().GetString("trigger"); v != "" {
			cfg.Daemon.TriggerPath = v
		}

		d := &daemon{
			orch:     mustOrchestrator("daemon", modeRemote),
			migrator: mustMigrator("daemon"),
			user:     user,
			interval: cfg.Daemon.Interval,
			debounce: cfg.Daemon.Debounce,
			trigger:  cfg.Daemon.TriggerPath,
			log:      logger.With("component", "daemon", "user", user),
		}
		if err := d.run(rootCtx); err != nil {
			FatalError("%v", err)
		}
	},
}

type daemon struct {
	orch     *syncer.Orchestrator
	migrator *migrate.Runner
	user     string
	interval time.Duration
	debounce time.Duration
	trigger  string
	log      *slog.Logger

	syncs atomic.Int64
}

// run blocks until ctx is done.
func (d *daemon) run(ctx context.Context) error {
	if d.interval <= 0 {
		return fmt.Errorf("daemon interval must be positive")
	}
	d.log.Info("daemon starting", "interval", d.interval, "trigger", d.trigger)

	if d.migrator != nil {
		if res, err := d.migrator.Migrate(ctx, d.user); err != nil {
			d.log.Warn("legacy migration failed; will retry on next start", "error", err)
		} else if !res.AlreadyCompleted {
			d.log.Info("legacy migration completed", "records", res.Total())
		}
	}
	if bal, _, err := d.orch.Repair(ctx, d.user); err != nil {
		d.log.Warn("startup repair failed", "error", err)
	} else {
		d.log.Info("balance rebuilt", "current", bal.Current)
	}

	d.syncOnce(ctx, "startup")

	deb := NewDebouncer(ctx, d.debounce, func(ctx context.Context) {
		d.syncOnce(ctx, "trigger")
	})
	defer deb.CancelAndWait()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if d.trigger != "" {
		w, err := watchTrigger(d.trigger)
		if err != nil {
			d.log.Warn("trigger file unavailable; interval sync only", "path", d.trigger, "error", err)
		} else {
			defer func() { _ = w.Close() }()
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping", "syncs", d.syncs.Load())
			return nil
		case <-ticker.C:
			d.syncOnce(ctx, "interval")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if isTriggerEvent(ev, d.trigger) {
				d.log.Debug("trigger touched", "op", ev.Op.String())
				deb.Trigger()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.log.Warn("trigger watcher error", "error", err)
		}
	}
}

// syncOnce runs one SyncAll and logs its outcome. Failures are logged, not
// returned; the next tick retries.
func (d *daemon) syncOnce(ctx context.Context, reason string) {
	if d.orch.Busy(d.user) {
		d.log.Debug("sync already running; skipping", "reason", reason)
		return
	}
	rep, err := d.orch.SyncAll(ctx, d.user)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.log.Error("sync could not start", "reason", reason, "error", err)
		}
		return
	}
	d.syncs.Add(1)
	if rep.OK() {
		d.log.Info("sync complete", "reason", reason, "duration", rep.FinishedAt.Sub(rep.StartedAt))
		return
	}
	d.log.Warn("sync incomplete", "reason", reason, "failed", describeFailures(rep), "error", rep.Err())
}

// watchTrigger watches the directory holding path, creating the file if it
// is missing. Editors and touch replace files, so the directory is watched
// rather than the file itself.
func watchTrigger(path string) (*fsnotify.Watcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from the user's config
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func isTriggerEvent(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Chmod)
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "Sync interval (default: daemon.interval)")
	daemonCmd.Flags().String("trigger", "", "File whose modification starts a sync (default: daemon.trigger)")
	rootCmd.AddCommand(daemonCmd)
}
