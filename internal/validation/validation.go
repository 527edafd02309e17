// Package validation enforces that meal items reference known foods.
package validation

import (
	"github.com/steveyegge/mealsync/internal/types"
)

// Catalog answers whether a food id resolves.
type Catalog interface {
	Contains(foodID string) bool
}

// FoodSet is a Catalog over a fixed set of ids.
type FoodSet map[string]struct{}

// NewFoodSet returns a set holding ids.
func NewFoodSet(ids ...string) FoodSet {
	s := make(FoodSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains implements Catalog.
func (s FoodSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Result is the outcome of Validate.
type Result struct {
	// Entries has one entry per input entry, in input order.
	Entries []types.MealEntry
	// RemovedCount is the number of item references dropped.
	RemovedCount int
	// Narrowed lists the ids of entries that lost at least one item.
	Narrowed []string
}

// Validate drops item references whose food id is not in catalog. Entries
// themselves are always kept, even when every item is dropped. The input
// slice and its entries are not modified; narrowed entries get new item
// slices.
func Validate(entries []types.MealEntry, catalog Catalog) Result {
	res := Result{Entries: make([]types.MealEntry, len(entries))}
	for i, e := range entries {
		removed := 0
		for _, it := range e.Items {
			if !catalog.Contains(it.FoodID) {
				removed++
			}
		}
		if removed == 0 {
			res.Entries[i] = e
			continue
		}

		narrowed := e.Clone()
		kept := make([]types.ItemRef, 0, len(e.Items)-removed)
		for _, it := range narrowed.Items {
			if catalog.Contains(it.FoodID) {
				kept = append(kept, it)
			}
		}
		narrowed.Items = kept
		res.Entries[i] = narrowed
		res.RemovedCount += removed
		res.Narrowed = append(res.Narrowed, e.ID)
	}
	return res
}
