package types

import (
	"cmp"
	"slices"
	"strings"
)

// SortDirection controls display ordering.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc and their long forms. Unknown input
// falls back to descending, the display default for meals.
func ParseSortDirection(raw string) SortDirection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending", "oldest":
		return SortAsc
	default:
		return SortDesc
	}
}

// SortMeals orders meals by creation time in place, with the id as a tiebreak
// so equal timestamps still produce a stable order across devices.
func SortMeals(meals []MealEntry, dir SortDirection) {
	slices.SortFunc(meals, func(a, b MealEntry) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if dir == SortDesc {
			return -c
		}
		return c
	})
}

// SortWeights orders weigh-ins by date in place.
func SortWeights(weights []WeightEntry, dir SortDirection) {
	slices.SortFunc(weights, func(a, b WeightEntry) int {
		c := cmp.Compare(a.Date, b.Date)
		if dir == SortDesc {
			return -c
		}
		return c
	})
}
