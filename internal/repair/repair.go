// Package repair rebuilds the point balance from the meal log.
//
// The balance is derived state. Repair replays every day from the first
// logged meal up to the as-of day. The running balance is seeded with the
// accrual of the replayed days, bounded by the cap, and every meal not on a
// cheat day is debited from it. Debt carries across days; only the final
// balance is clamped to [floor, ceiling]:
//
//	balance = clamp(min(cap, days*daily) - spent, floor, ceiling)
//
// The result does not depend on which day a cost falls on. Given the same
// input it always produces the same balance, so callers may run it as often
// as they like.
package repair

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/steveyegge/mealsync/internal/types"
)

// AccrualRule parameterizes the daily fold.
type AccrualRule struct {
	// Daily is accrued for every replayed day.
	Daily float64
	// Cap bounds the total accrual of a replay.
	Cap float64
	// Floor and Ceiling bound the final balance.
	Floor   float64
	Ceiling float64
}

// DefaultRule is 3 points a day, capped at 12, balance kept within [0, 100].
var DefaultRule = AccrualRule{Daily: 3, Cap: 12, Floor: 0, Ceiling: 100}

// Validate checks that the rule is usable.
func (r AccrualRule) Validate() error {
	for _, v := range []float64{r.Daily, r.Cap, r.Floor, r.Ceiling} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("accrual rule values must be finite")
		}
	}
	if r.Daily < 0 {
		return fmt.Errorf("daily accrual %v must not be negative", r.Daily)
	}
	if r.Ceiling < r.Floor {
		return fmt.Errorf("ceiling %v is below floor %v", r.Ceiling, r.Floor)
	}
	return nil
}

// Costs resolves the point cost of one serving of a food.
type Costs interface {
	Cost(foodID string) (float64, bool)
}

// Input is everything the balance depends on.
type Input struct {
	Entries   []types.MealEntry
	CheatDays types.CheatDays
	Costs     Costs
	Rule      AccrualRule
	// AsOf is the last day replayed. Zero means the day of the latest entry.
	AsOf time.Time
}

// Stats describes a repair run.
type Stats struct {
	Days          int
	EntriesCosted int
	EntriesExempt int
	// EntriesFuture counts entries dated after AsOf. They are not replayed.
	EntriesFuture int
	// ItemsIgnored counts item references that did not resolve, carried a
	// negative quantity or resolved to a negative cost. They cost nothing.
	ItemsIgnored int
	Spent        float64
}

// Repair replays the meal log and returns the resulting balance.
// ComputedAt is set to the as-of day so the output depends only on in.
func Repair(in Input) (types.PointBalance, Stats) {
	var stats Stats
	rule := in.Rule

	byDay := make(map[string][]types.MealEntry)
	var first, last time.Time
	for _, e := range in.Entries {
		if e.CreatedAt.IsZero() {
			continue
		}
		d := dayStart(e.CreatedAt)
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
		byDay[e.Day()] = append(byDay[e.Day()], e)
	}

	end := last
	if !in.AsOf.IsZero() {
		end = dayStart(in.AsOf)
	}
	if end.IsZero() {
		return types.PointBalance{Current: rule.Floor}, stats
	}
	start := first
	if start.IsZero() || start.After(end) {
		start = end
	}
	for _, e := range in.Entries {
		if dayStart(e.CreatedAt).After(end) {
			stats.EntriesFuture++
		}
	}

	var lastClaim string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		stats.Days++
		lastClaim = d.Format(types.DateLayout)
	}
	accrued := math.Max(0, math.Min(rule.Cap, float64(stats.Days)*rule.Daily))

	balance := accrued
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(types.DateLayout)
		exempt := in.CheatDays.Has(day)
		for _, e := range byDay[day] {
			if exempt {
				stats.EntriesExempt++
				continue
			}
			cost, ignored := entryCost(e, in.Costs)
			stats.ItemsIgnored += ignored
			stats.EntriesCosted++
			stats.Spent += cost
			balance -= cost
		}
	}
	balance = clamp(balance, rule.Floor, rule.Ceiling)

	return types.PointBalance{
		Current:       balance,
		LastClaimDate: lastClaim,
		LifetimeTotal: accrued,
		ComputedAt:    end,
	}, stats
}

// entryCost sums pointCost × quantity over the resolvable items of e.
func entryCost(e types.MealEntry, costs Costs) (total float64, ignored int) {
	for _, it := range e.Items {
		var (
			c  float64
			ok bool
		)
		if costs != nil {
			c, ok = costs.Cost(it.FoodID)
		}
		q := it.Servings()
		if !ok || !usable(c) || !usable(q) {
			ignored++
			continue
		}
		total += c * q
	}
	return total, ignored
}

func usable(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func dayStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
