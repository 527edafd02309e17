package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/mealsync/internal/codec"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

type repairResult struct {
	balance types.PointBalance
	stats   repair.Stats
}

// Repair recomputes the point balance of userID as of today and replaces
// the cached balance. It waits for a running SyncAll of the same user, so
// it never writes a balance derived from a meal log the sync is replacing.
// Concurrent calls for the same user and day share one computation.
func (o *Orchestrator) Repair(ctx context.Context, userID string) (types.PointBalance, repair.Stats, error) {
	return o.RepairAsOf(ctx, userID, o.now())
}

// RepairAsOf is Repair with an explicit last day.
func (o *Orchestrator) RepairAsOf(ctx context.Context, userID string, asOf time.Time) (types.PointBalance, repair.Stats, error) {
	if err := storage.ValidateUserID(userID); err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}
	key := userID + "@" + asOf.UTC().Format(types.DateLayout)
	v, err, shared := o.repairs.Do(key, func() (any, error) {
		release, err := o.guard.acquire(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("wait for running sync of %s: %w", userID, err)
		}
		defer release()
		bal, stats, err := o.repairNow(ctx, userID, asOf)
		if err != nil {
			return nil, err
		}
		return repairResult{balance: bal, stats: stats}, nil
	})
	if err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}
	if shared {
		o.log.Debug("joined in-flight repair", "user", userID, "as_of", key)
	}
	r := v.(repairResult)
	return r.balance, r.stats, nil
}

// repairNow replays the stored meal log and writes the points cache.
func (o *Orchestrator) repairNow(ctx context.Context, userID string, asOf time.Time) (types.PointBalance, repair.Stats, error) {
	meals, err := LoadMeals(ctx, o.local, userID)
	if err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}
	flags, err := loadTyped[types.CheatDayFlag](ctx, o.local, types.CollectionCheatDays, userID)
	if err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}
	foods, err := loadTyped[types.FoodItem](ctx, o.local, types.CollectionCustomFoods, userID)
	if err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}

	bal, stats := repair.Repair(repair.Input{
		Entries:   meals,
		CheatDays: types.NewCheatDays(flags),
		Costs:     o.catalog.WithCustom(foods),
		Rule:      o.rule,
		AsOf:      asOf,
	})
	if err := o.writeBalance(ctx, userID, bal); err != nil {
		return types.PointBalance{}, repair.Stats{}, err
	}
	o.log.Info("points repaired", "user", userID, "balance", bal.Current,
		"days", stats.Days, "spent", stats.Spent, "ignored_items", stats.ItemsIgnored)
	return bal, stats, nil
}

func (o *Orchestrator) writeBalance(ctx context.Context, userID string, bal types.PointBalance) error {
	rec, err := codec.Encode(bal)
	if err != nil {
		return err
	}
	value, err := storage.EncodeSnapshot([]storage.Record{rec})
	if err != nil {
		return err
	}
	if err := o.local.Write(ctx, storage.LocalKey(types.CollectionPoints, userID), value); err != nil {
		return fmt.Errorf("write points cache: %w", err)
	}
	return nil
}
