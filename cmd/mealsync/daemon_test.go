package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/storage/memory"
	"github.com/steveyegge/mealsync/internal/syncer"
)

func newTestDaemon(t *testing.T, interval time.Duration, trigger string) (*daemon, *memory.Local) {
	t.Helper()
	local, remote := memory.NewLocal(), memory.NewRemote()
	orch, err := syncer.New(local, remote, syncer.Options{PushEnabled: true})
	require.NoError(t, err)
	return &daemon{
		orch:     orch,
		migrator: migrate.New(local, remote, nil),
		user:     "alice",
		interval: interval,
		debounce: 20 * time.Millisecond,
		trigger:  trigger,
		log:      debug.Discard(),
	}, local
}

func runDaemon(t *testing.T, d *daemon) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

func TestDaemonStartupMigratesRepairsAndSyncs(t *testing.T) {
	d, local := newTestDaemon(t, time.Hour, "")
	stop := runDaemon(t, d)

	require.Eventually(t, func() bool { return d.syncs.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	stop()

	done, err := local.GetMetadata(context.Background(), storage.MetaMigrationCompleted)
	require.NoError(t, err)
	assert.NotEmpty(t, done)

	last, err := syncer.LastSync(context.Background(), local, "alice")
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestDaemonSyncsOnInterval(t *testing.T) {
	d, _ := newTestDaemon(t, 30*time.Millisecond, "")
	stop := runDaemon(t, d)
	defer stop()

	require.Eventually(t, func() bool { return d.syncs.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestDaemonSyncsWhenTriggerTouched(t *testing.T) {
	trigger := filepath.Join(t.TempDir(), "state", "sync-now")
	d, _ := newTestDaemon(t, time.Hour, trigger)
	stop := runDaemon(t, d)
	defer stop()

	require.Eventually(t, func() bool { return d.syncs.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// The watcher starts after the startup sync, so keep touching until one lands.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(trigger, []byte(time.Now().String()), 0o600)
		return d.syncs.Load() >= 2
	}, 5*time.Second, 60*time.Millisecond)
}

func TestDaemonRejectsZeroInterval(t *testing.T) {
	d, _ := newTestDaemon(t, 0, "")
	require.Error(t, d.run(context.Background()))
}

func TestIsTriggerEvent(t *testing.T) {
	path := filepath.Join("/tmp", "mealsync", "sync-now")
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{"touch", fsnotify.Event{Name: path, Op: fsnotify.Chmod}, true},
		{"remove", fsnotify.Event{Name: path, Op: fsnotify.Remove}, false},
		{"other file", fsnotify.Event{Name: path + ".swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTriggerEvent(tt.ev, path))
		})
	}
}
