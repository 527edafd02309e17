// Package types defines the core entities reconciled by mealsync.
package types

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day-granularity key format used by weights and cheat days.
const DateLayout = "2006-01-02"

// ItemRef points a meal at a food in the catalog.
// Quantity is optional; nil means a single serving.
type ItemRef struct {
	FoodID   string   `json:"foodId"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// Servings returns the quantity, defaulting to 1.
func (r ItemRef) Servings() float64 {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// MealEntry is an append-only log record of something the user ate.
// Entries are never mutated after creation, only added or deleted.
type MealEntry struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	Items     []ItemRef `json:"items"`
}

// Key implements Entity.
func (m MealEntry) Key() string { return m.ID }

// Day returns the UTC calendar day the entry belongs to.
func (m MealEntry) Day() string { return m.CreatedAt.UTC().Format(DateLayout) }

// Clone returns a copy whose item slice does not alias the receiver's.
func (m MealEntry) Clone() MealEntry {
	out := m
	out.Items = make([]ItemRef, len(m.Items))
	for i, it := range m.Items {
		out.Items[i] = it
		if it.Quantity != nil {
			q := *it.Quantity
			out.Items[i].Quantity = &q
		}
	}
	return out
}

// Nutrients holds per-serving nutrient values.
type Nutrients struct {
	Calories float64 `json:"calories" toml:"calories"`
	Protein  float64 `json:"protein" toml:"protein"`
	Carbs    float64 `json:"carbs" toml:"carbs"`
	Fat      float64 `json:"fat" toml:"fat"`
	Fiber    float64 `json:"fiber" toml:"fiber"`
}

// FoodItem is a catalog entry. Built-in items are immutable; custom items
// are owned by one user and synced as the custom_foods collection.
type FoodItem struct {
	ID        string    `json:"id" toml:"id"`
	Name      string    `json:"name" toml:"name"`
	Nutrients Nutrients `json:"nutrients" toml:"nutrients"`
	PointCost float64   `json:"pointCost" toml:"point_cost"`
	Custom    bool      `json:"custom,omitempty" toml:"-"`
}

// Key implements Entity.
func (f FoodItem) Key() string { return f.ID }

// PointBalance is derived state. It is rebuilt wholesale by repair and any
// stored copy is only a cache.
type PointBalance struct {
	Current       float64   `json:"current"`
	LastClaimDate string    `json:"lastClaimDate,omitempty"`
	LifetimeTotal float64   `json:"lifetimeTotal"`
	ComputedAt    time.Time `json:"computedAt"`
}

// Key implements Entity. The balance is a single document per user.
func (PointBalance) Key() string { return "balance" }

// WeightEntry is one weigh-in, unique per day.
type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// Key implements Entity.
func (w WeightEntry) Key() string { return w.Date }

// Baseline is the first weight sample ever recorded. Once set it never changes.
type Baseline struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// BaselineKey is the fixed document key of the baseline collection.
const BaselineKey = "baseline"

// Key implements Entity.
func (Baseline) Key() string { return BaselineKey }

// NutritionTargets is the user's single targets document.
type NutritionTargets struct {
	Nutrients
}

// TargetsKey is the fixed document key of the targets collection.
const TargetsKey = "targets"

// Key implements Entity.
func (NutritionTargets) Key() string { return TargetsKey }

// CheatDayFlag marks a day whose meals cost no points. Absence means false.
type CheatDayFlag struct {
	Date    string `json:"date"`
	Enabled bool   `json:"enabled"`
}

// Key implements Entity.
func (c CheatDayFlag) Key() string { return c.Date }

// Entity is anything stored in a collection under a stable key.
type Entity interface {
	Key() string
}

// CheatDays is the sparse set of exempt days.
type CheatDays map[string]bool

// NewCheatDays builds the set from flags, dropping disabled ones.
func NewCheatDays(flags []CheatDayFlag) CheatDays {
	out := make(CheatDays, len(flags))
	for _, f := range flags {
		if f.Enabled {
			out[f.Date] = true
		}
	}
	return out
}

// Has reports whether day is a cheat day.
func (c CheatDays) Has(day string) bool { return c[day] }

// ParseDay normalizes a day string or timestamp to DateLayout.
func ParseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
}
