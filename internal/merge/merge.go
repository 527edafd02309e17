// Package merge reconciles a local and a remote replica of one collection.
//
// The policy is last-writer-wins by origin: the result holds the union of
// both key sets, and when a key exists on both sides the remote value is
// taken whole. Values are never combined field by field. The remote side is
// treated as authoritative because local writes are pushed before they are
// trusted, so a remote copy implies the device has already observed it.
//
// Deletions are not recorded. A key deleted locally but still present
// remotely comes back on the next merge.
package merge

import (
	"cmp"
	"slices"

	"github.com/steveyegge/mealsync/internal/types"
)

// Merge returns the union of local and remote. For keys present in both,
// the remote value wins. Neither input is modified.
func Merge[K comparable, V any](local, remote map[K]V) map[K]V {
	out := make(map[K]V, max(len(local), len(remote)))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range remote {
		out[k] = v
	}
	return out
}

// Diff partitions the keys of two replicas.
type Diff[K cmp.Ordered] struct {
	LocalOnly  []K
	RemoteOnly []K
	Both       []K
}

// Compare reports which keys appear on which side, each list sorted.
func Compare[K cmp.Ordered, V any](local, remote map[K]V) Diff[K] {
	var d Diff[K]
	for k := range local {
		if _, ok := remote[k]; ok {
			d.Both = append(d.Both, k)
		} else {
			d.LocalOnly = append(d.LocalOnly, k)
		}
	}
	for k := range remote {
		if _, ok := local[k]; !ok {
			d.RemoteOnly = append(d.RemoteOnly, k)
		}
	}
	slices.Sort(d.LocalOnly)
	slices.Sort(d.RemoteOnly)
	slices.Sort(d.Both)
	return d
}

// Index keys entities by Key. When a replica holds the same key twice the
// last occurrence wins, matching a whole-value overwrite.
func Index[E types.Entity](es []E) map[string]E {
	out := make(map[string]E, len(es))
	for _, e := range es {
		out[e.Key()] = e
	}
	return out
}

// Values returns the merged entities ordered by key, so output is stable
// regardless of map iteration.
func Values[V any](m map[string]V) []V {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Ordered returns the merged entities of collection c in their display
// order: meals newest first, weights by date, everything else by key.
func Ordered(c types.Collection, m map[string]types.Entity) []types.Entity {
	vals := Values(m)
	if !c.DisplayOrdered() {
		return vals
	}
	slices.SortStableFunc(vals, func(a, b types.Entity) int {
		switch x := a.(type) {
		case types.MealEntry:
			if y, ok := b.(types.MealEntry); ok {
				// Newest first; ids break ties.
				if d := y.CreatedAt.Compare(x.CreatedAt); d != 0 {
					return d
				}
				return cmp.Compare(y.ID, x.ID)
			}
		case types.WeightEntry:
			if y, ok := b.(types.WeightEntry); ok {
				return cmp.Compare(x.Date, y.Date)
			}
		}
		return 0
	})
	return vals
}
