package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/config"
	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/types"
	"github.com/steveyegge/mealsync/internal/ui"
)

func init() {
	ui.InitColor(true)
}

func partialReport() *syncer.Report {
	start := time.Date(2025, 1, 3, 18, 0, 0, 0, time.UTC)
	return &syncer.Report{
		UserID:     "alice",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Collections: map[types.Collection]*syncer.CollectionReport{
			types.CollectionMeals: {
				Collection: types.CollectionMeals, State: syncer.StateDone,
				Merged: 3, LocalOnly: 1, Pushed: 1, Removed: 1, Narrowed: []string{"m2"},
			},
			types.CollectionWeights: {
				Collection: types.CollectionWeights, State: syncer.StateFailed, FailedAt: syncer.StateFetchRemote,
				Errors: []string{"list weights: permission denied"},
			},
		},
		Errors: []string{"write last sync: disk full"},
	}
}

func TestRenderReport(t *testing.T) {
	out := renderReport(partialReport())

	assert.Contains(t, out, "SYNC alice in 1.5s")
	assert.Contains(t, out, "COLLECTION")
	assert.Contains(t, out, "meals")
	assert.Contains(t, out, "failed at fetch_remote")
	assert.Contains(t, out, "weights: list weights: permission denied")
	assert.Contains(t, out, "meals: dropped unknown foods from m2")
	assert.Contains(t, out, "write last sync: disk full")
	assert.Contains(t, out, "Points: not computed")
	assert.NotContains(t, out, "custom_foods", "collections absent from the report are not listed")
}

func TestDescribeFailures(t *testing.T) {
	assert.Equal(t, "weights, 1 other errors", describeFailures(partialReport()))
	assert.Equal(t, "unknown failure", describeFailures(&syncer.Report{}))
}

func TestRenderBalance(t *testing.T) {
	bal := &types.PointBalance{Current: 6, LifetimeTotal: 9.5, LastClaimDate: "2025-01-03"}
	assert.Equal(t, "6 (lifetime 9.5), last accrual 2025-01-03", renderBalance(bal))
}

func TestRenderRepair(t *testing.T) {
	out := renderRepair("alice", types.PointBalance{Current: 6, LifetimeTotal: 9},
		repair.Stats{Days: 3, EntriesCosted: 2, EntriesExempt: 1, EntriesFuture: 1, Spent: 3})
	assert.Contains(t, out, "Replayed 3 days: 2 entries costed, 1 on cheat days, spent 3")
	assert.Contains(t, out, "1 entries after the as-of day")
	assert.NotContains(t, out, "item references")
}

func TestRenderStatus(t *testing.T) {
	st := &syncer.Status{
		UserID:  "alice",
		Counts:  map[types.Collection]int{types.CollectionMeals: 4},
		Skipped: map[types.Collection]int{types.CollectionMeals: 1},
	}
	out := renderStatus(st)
	assert.Contains(t, out, "Last sync: never")
	assert.Contains(t, out, "Points: not computed")
	assert.Regexp(t, `meals\s+4\s+1`, out)
}

func TestRenderMealsAndMigration(t *testing.T) {
	assert.Contains(t, renderMeals(nil), "No meals logged.")

	out := renderMigration(migrate.Result{
		UserID: "alice",
		Collections: map[types.Collection]migrate.CollectionResult{
			types.CollectionMeals:   {Found: 2, Migrated: 2, AssignedIDs: 1, Merged: 3},
			types.CollectionWeights: {Found: 1, Migrated: 1, Merged: 1},
		},
	})
	assert.Contains(t, out, "migrated 3 records")
	assert.Less(t, strings.Index(out, "meals"), strings.Index(out, "weights"))

	assert.Contains(t, renderMigration(migrate.Result{UserID: "alice", AlreadyCompleted: true}), "already migrated")
}

func TestMealsSince(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 12, 0, 0, 0, time.UTC) }
	meals := []types.MealEntry{{ID: "c", CreatedAt: day(3)}, {ID: "b", CreatedAt: day(2)}, {ID: "a", CreatedAt: day(1)}}

	got := mealsSince(meals, day(2))
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Empty(t, mealsSince(meals, day(4)))
}

func TestConfigConversions(t *testing.T) {
	rp := retryPolicy(config.Retry{InitialInterval: time.Second, MaxInterval: 4 * time.Second, MaxElapsed: time.Minute, MaxAttempts: 3})
	assert.Equal(t, time.Second, rp.InitialInterval)
	assert.Equal(t, 3, rp.MaxAttempts)

	rule := accrualRule(config.Points{Daily: 3, Cap: 12, Floor: 0, Ceiling: 100})
	assert.Equal(t, repair.DefaultRule, rule)
}

func TestLoadCatalogExtra(t *testing.T) {
	cat, err := loadCatalog(config.Catalog{})
	require.NoError(t, err)
	base := cat.Len()

	path := filepath.Join(t.TempDir(), "extra.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[food]]
id = "tarte_maison"
name = "Tarte maison"
point_cost = 4.0
`), 0o600))

	cat, err = loadCatalog(config.Catalog{Extra: path})
	require.NoError(t, err)
	assert.Equal(t, base+1, cat.Len())
	cost, ok := cat.Cost("tarte_maison")
	require.True(t, ok)
	assert.Equal(t, 4.0, cost)

	hits, err := searchCatalog(cat, "tarte", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "tarte_maison", hits[0].Food.ID)
}

func TestOpenStoresMemoryRemote(t *testing.T) {
	c := &config.Config{
		Local: config.Local{Path: filepath.Join(t.TempDir(), "nested", "local.db"), BusyTimeout: time.Second},
		Remote: config.Remote{
			Driver: config.DriverMemory,
			Retry:  config.Retry{MaxAttempts: 1},
		},
		Sync:   config.Sync{Concurrency: 2, PushEnabled: true},
		Points: config.Points{Daily: 3, Cap: 12, Ceiling: 100},
	}
	s, err := openStores(t.Context(), c, debug.Discard(), "test", modeRemote)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	orch, err := newOrchestrator(s, c, nil)
	require.NoError(t, err)
	rep, err := orch.SyncAll(t.Context(), "alice")
	require.NoError(t, err)
	assert.True(t, rep.OK(), "errors: %v", rep.Err())
	require.NotNil(t, rep.Balance)
}
