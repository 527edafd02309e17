package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/mealsync/internal/codec"
	"github.com/steveyegge/mealsync/internal/merge"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

// LoadCollection decodes the locally cached value of a collection in display
// order. Undecodable records are skipped and counted.
func LoadCollection(ctx context.Context, local storage.LocalStore, c types.Collection, userID string) ([]types.Entity, int, error) {
	recs, err := storage.ReadSnapshot(ctx, local, storage.LocalKey(c, userID))
	if err != nil {
		return nil, 0, err
	}
	dec := codec.DecodeAll(c, recs)
	return merge.Ordered(c, merge.Index(dec.Entities)), dec.Skipped, nil
}

func loadTyped[E types.Entity](ctx context.Context, local storage.LocalStore, c types.Collection, userID string) ([]E, error) {
	es, _, err := LoadCollection(ctx, local, c, userID)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(es))
	for _, e := range es {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// LoadMeals returns the cached meal log of userID, newest first.
func LoadMeals(ctx context.Context, local storage.LocalStore, userID string) ([]types.MealEntry, error) {
	return loadTyped[types.MealEntry](ctx, local, types.CollectionMeals, userID)
}

// LoadBalance returns the cached point balance, or nil when repair has not
// run yet for userID.
func LoadBalance(ctx context.Context, local storage.LocalStore, userID string) (*types.PointBalance, error) {
	bals, err := loadTyped[types.PointBalance](ctx, local, types.CollectionPoints, userID)
	if err != nil || len(bals) == 0 {
		return nil, err
	}
	return &bals[0], nil
}

// LastSync returns when userID last completed a sync. The zero time means
// never.
func LastSync(ctx context.Context, local storage.LocalStore, userID string) (time.Time, error) {
	v, err := local.GetMetadata(ctx, storage.LastSyncKey(userID))
	if storage.IsNotFound(err) || (err == nil && v == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync %q: %w", v, err)
	}
	return t, nil
}

// Status is a read-only summary of a user's local state.
type Status struct {
	UserID   string                   `json:"user_id"`
	LastSync time.Time                `json:"last_sync"`
	Balance  *types.PointBalance      `json:"balance,omitempty"`
	Counts   map[types.Collection]int `json:"counts"`
	Skipped  map[types.Collection]int `json:"skipped,omitempty"`
	Syncing  bool                     `json:"syncing"`
}

// Status summarizes the local state of userID without touching the remote.
func (o *Orchestrator) Status(ctx context.Context, userID string) (*Status, error) {
	if err := storage.ValidateUserID(userID); err != nil {
		return nil, err
	}
	st := &Status{
		UserID:  userID,
		Counts:  make(map[types.Collection]int, len(types.SyncedCollections)),
		Syncing: o.Busy(userID),
	}
	var err error
	if st.LastSync, err = LastSync(ctx, o.local, userID); err != nil {
		return nil, err
	}
	if st.Balance, err = LoadBalance(ctx, o.local, userID); err != nil {
		return nil, err
	}
	for _, c := range types.SyncedCollections {
		es, skipped, err := LoadCollection(ctx, o.local, c, userID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", c, err)
		}
		st.Counts[c] = len(es)
		if skipped > 0 {
			if st.Skipped == nil {
				st.Skipped = make(map[types.Collection]int)
			}
			st.Skipped[c] = skipped
		}
	}
	return st, nil
}
