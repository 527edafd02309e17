package types

// Collection names one per-user entity collection.
type Collection string

const (
	CollectionMeals       Collection = "meals"
	CollectionCustomFoods Collection = "custom_foods"
	CollectionWeights     Collection = "weights"
	CollectionBaseline    Collection = "baseline"
	CollectionTargets     Collection = "targets"
	CollectionCheatDays   Collection = "cheat_days"

	// CollectionPoints holds the derived balance cache. It is written by
	// repair and never reconciled.
	CollectionPoints Collection = "points"
)

// SyncedCollections lists the collections reconciled by a sync, in the order
// they are reported.
var SyncedCollections = []Collection{
	CollectionCustomFoods,
	CollectionMeals,
	CollectionWeights,
	CollectionBaseline,
	CollectionTargets,
	CollectionCheatDays,
}

var validCollections = map[Collection]bool{
	CollectionMeals:       true,
	CollectionCustomFoods: true,
	CollectionWeights:     true,
	CollectionBaseline:    true,
	CollectionTargets:     true,
	CollectionCheatDays:   true,
	CollectionPoints:      true,
}

// IsValid checks if the collection is known.
func (c Collection) IsValid() bool {
	return validCollections[c]
}

// String implements fmt.Stringer.
func (c Collection) String() string { return string(c) }

// DisplayOrdered reports whether the collection is re-sorted by time after a merge.
func (c Collection) DisplayOrdered() bool {
	return c == CollectionMeals || c == CollectionWeights
}
