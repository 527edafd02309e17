// Package syncer reconciles a user's collections between the local cache and
// the remote store.
//
// SyncAll runs one pipeline per collection. Pipelines that do not depend on
// each other run concurrently; meals wait for custom_foods because the
// validator needs the merged custom foods, and baseline waits for weights so
// it can be seeded from the earliest weigh-in. A failing pipeline never stops
// the others. When every pipeline has settled the point balance is repaired
// once from the resulting local state and the last-sync marker is written.
//
// Adapter errors never escape SyncAll. Everything is recorded in the Report.
package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/mealsync/internal/catalog"
	"github.com/steveyegge/mealsync/internal/merge"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/telemetry"
	"github.com/steveyegge/mealsync/internal/types"
)

// DefaultConcurrency bounds the number of collection chains run at once.
const DefaultConcurrency = 4

// Options configures an Orchestrator. The zero value pushes nothing and
// uses the built-in catalog and repair.DefaultRule.
type Options struct {
	// Concurrency bounds parallel collection chains. Zero means
	// DefaultConcurrency; 1 runs every chain in sequence.
	Concurrency int
	// PushEnabled sends local-only records to the remote store.
	PushEnabled bool
	// Rule drives point repair. The zero rule means repair.DefaultRule.
	Rule repair.AccrualRule
	// Catalog is the base food catalog. Nil means catalog.Builtin().
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	// Now is the clock used for the last-sync marker and repair as-of day.
	Now func() time.Time
}

// Orchestrator owns the per-user guard. Concurrent SyncAll calls for the
// same user are serialized; different users proceed independently.
type Orchestrator struct {
	local       storage.LocalStore
	remote      storage.RemoteStore
	push        bool
	concurrency int
	rule        repair.AccrualRule
	catalog     *catalog.Catalog
	log         *slog.Logger
	now         func() time.Time

	guard   *userGuard
	repairs singleflight.Group
}

// New builds an Orchestrator over the two adapters.
func New(local storage.LocalStore, remote storage.RemoteStore, opts Options) (*Orchestrator, error) {
	if local == nil || remote == nil {
		return nil, fmt.Errorf("syncer: local and remote stores are required")
	}
	o := &Orchestrator{
		local:       local,
		remote:      remote,
		push:        opts.PushEnabled,
		concurrency: opts.Concurrency,
		rule:        opts.Rule,
		catalog:     opts.Catalog,
		log:         opts.Logger,
		now:         opts.Now,
		guard:       newUserGuard(),
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.rule == (repair.AccrualRule{}) {
		o.rule = repair.DefaultRule
	}
	if err := o.rule.Validate(); err != nil {
		return nil, fmt.Errorf("syncer: %w", err)
	}
	if o.catalog == nil {
		c, err := catalog.Builtin()
		if err != nil {
			return nil, fmt.Errorf("syncer: %w", err)
		}
		o.catalog = c
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// SyncAll reconciles every synced collection of userID. It blocks while
// another SyncAll for the same user is running. The returned report is
// never nil; the error is non-nil only when the sync could not start at all
// (invalid user id, or ctx done while waiting for the guard).
func (o *Orchestrator) SyncAll(ctx context.Context, userID string) (*Report, error) {
	rep := &Report{
		UserID:      userID,
		Collections: make(map[types.Collection]*CollectionReport, len(types.SyncedCollections)),
	}
	for _, c := range types.SyncedCollections {
		rep.Collections[c] = newCollectionReport(c)
	}
	if err := storage.ValidateUserID(userID); err != nil {
		rep.fail(err)
		return rep, err
	}

	release, err := o.guard.acquire(ctx, userID)
	if err != nil {
		err = fmt.Errorf("wait for running sync of %s: %w", userID, err)
		rep.fail(err)
		return rep, err
	}
	defer release()

	ctx, span := telemetry.Tracer("").Start(ctx, "sync.all")
	defer span.End()
	span.SetAttributes(attribute.Int("mealsync.collections", len(rep.Collections)))

	rep.StartedAt = o.now()
	o.log.Info("sync started", "user", userID, "push", o.push, "concurrency", o.concurrency)

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	g.Go(func() error {
		foods := o.runCollection(ctx, userID, types.CollectionCustomFoods, rep.Collections[types.CollectionCustomFoods], stage{})
		st := stage{}
		if rep.Collections[types.CollectionCustomFoods].Failed() {
			st.skipReason = "validation skipped: custom_foods did not sync this cycle"
		} else {
			st.catalog = o.catalog.WithCustom(customFoods(foods))
		}
		o.runCollection(ctx, userID, types.CollectionMeals, rep.Collections[types.CollectionMeals], st)
		return nil
	})
	g.Go(func() error {
		weights := o.runCollection(ctx, userID, types.CollectionWeights, rep.Collections[types.CollectionWeights], stage{})
		o.runCollection(ctx, userID, types.CollectionBaseline, rep.Collections[types.CollectionBaseline], stage{baseline: earliestWeight(weights)})
		return nil
	})
	for _, c := range []types.Collection{types.CollectionTargets, types.CollectionCheatDays} {
		g.Go(func() error {
			o.runCollection(ctx, userID, c, rep.Collections[c], stage{})
			return nil
		})
	}
	_ = g.Wait()

	// Repair reads the final local state, which includes collections that
	// failed this cycle at their previous value.
	asOf := o.now()
	bal, stats, err := o.repairNow(ctx, userID, asOf)
	if err != nil {
		rep.fail(fmt.Errorf("repair: %w", err))
	} else {
		rep.Balance = &bal
		rep.RepairStats = &stats
	}

	if err := o.local.SetMetadata(ctx, storage.LastSyncKey(userID), asOf.UTC().Format(time.RFC3339Nano)); err != nil {
		rep.fail(fmt.Errorf("write last sync: %w", err))
	}

	rep.FinishedAt = o.now()
	if !rep.OK() {
		span.SetStatus(codes.Error, "partial sync")
	}
	o.log.Info("sync finished", "user", userID, "ok", rep.OK(),
		"failed", rep.FailedCollections(), "elapsed", rep.FinishedAt.Sub(rep.StartedAt))
	return rep, nil
}

// Busy reports whether a SyncAll or an on-demand repair holds userID.
func (o *Orchestrator) Busy(userID string) bool {
	return o.guard.busy(userID)
}

func customFoods(merged map[string]types.Entity) []types.FoodItem {
	var out []types.FoodItem
	for _, e := range merge.Values(merged) {
		if f, ok := e.(types.FoodItem); ok {
			out = append(out, f)
		}
	}
	return out
}

// earliestWeight returns the first weigh-in, or nil when there is none.
func earliestWeight(merged map[string]types.Entity) *types.Baseline {
	var first *types.WeightEntry
	for _, e := range merged {
		w, ok := e.(types.WeightEntry)
		if !ok {
			continue
		}
		if first == nil || w.Date < first.Date {
			first = &w
		}
	}
	if first == nil {
		return nil
	}
	return &types.Baseline{Date: first.Date, Weight: first.Weight}
}
