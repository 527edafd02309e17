package repair

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/types"
	"github.com/steveyegge/mealsync/internal/validation"
)

type costTable map[string]float64

func (c costTable) Cost(id string) (float64, bool) {
	v, ok := c[id]
	return v, ok
}

func day(n int) time.Time {
	return time.Date(2025, 1, 1+n, 12, 0, 0, 0, time.UTC)
}

func mealOn(id string, t time.Time, foods ...string) types.MealEntry {
	m := types.MealEntry{ID: id, CreatedAt: t}
	for _, f := range foods {
		m.Items = append(m.Items, types.ItemRef{FoodID: f})
	}
	return m
}

func TestRepairThreeDays(t *testing.T) {
	// Cost 10 over three days of 3/day accrual: clamp(min(12, 9) - 10, 0, 100).
	tests := []struct {
		name    string
		entries []types.MealEntry
	}{
		{"spent on the last day", []types.MealEntry{
			mealOn("m0", day(0)),
			mealOn("m2", day(2), "a", "b"),
		}},
		{"spent on the first day", []types.MealEntry{
			mealOn("m0", day(0), "a", "b"),
			mealOn("m2", day(2)),
		}},
		{"spread over all days", []types.MealEntry{
			mealOn("m0", day(0), "b"),
			mealOn("m1", day(1), "b"),
			mealOn("m2", day(2), "c"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal, stats := Repair(Input{
				Entries: tt.entries,
				Costs:   costTable{"a": 6, "b": 4, "c": 2},
				Rule:    DefaultRule,
				AsOf:    day(2),
			})
			assert.Equal(t, clamp(min(12, 9)-10, 0, 100), bal.Current)
			assert.Equal(t, 0.0, bal.Current)
			assert.Equal(t, 3, stats.Days)
			assert.Equal(t, 10.0, stats.Spent)
			assert.Equal(t, 9.0, bal.LifetimeTotal)
			assert.Equal(t, "2025-01-03", bal.LastClaimDate)
		})
	}
}

func TestRepairDebtCarriesAcrossDays(t *testing.T) {
	// 8 spent on day 0, then four more days: min(12, 15) - 8.
	bal, _ := Repair(Input{
		Entries: []types.MealEntry{mealOn("m0", day(0), "a", "a")},
		Costs:   costTable{"a": 4},
		Rule:    DefaultRule,
		AsOf:    day(4),
	})
	assert.Equal(t, 4.0, bal.Current)
}

func TestRepairNegativeCostIgnored(t *testing.T) {
	bal, stats := Repair(Input{
		Entries: []types.MealEntry{mealOn("m0", day(0), "a", "refund")},
		Costs:   costTable{"a": 1, "refund": -50},
		Rule:    DefaultRule,
		AsOf:    day(1),
	})
	assert.Equal(t, 5.0, bal.Current, "a negative cost must not credit points")
	assert.Equal(t, 1, stats.ItemsIgnored)
	assert.Equal(t, 1.0, stats.Spent)
}

func TestRepairAccrualCap(t *testing.T) {
	in := Input{
		Entries: []types.MealEntry{mealOn("m0", day(0))},
		Rule:    DefaultRule,
		AsOf:    day(9),
	}
	bal, stats := Repair(in)
	assert.Equal(t, 12.0, bal.Current)
	assert.Equal(t, 12.0, bal.LifetimeTotal, "only credited points count")
	assert.Equal(t, 10, stats.Days)
}

func TestRepairCheatDayExempt(t *testing.T) {
	in := Input{
		Entries: []types.MealEntry{
			mealOn("m0", day(0), "a"),
			mealOn("m1", day(1), "a"),
		},
		CheatDays: types.NewCheatDays([]types.CheatDayFlag{{Date: "2025-01-02", Enabled: true}}),
		Costs:     costTable{"a": 2},
		Rule:      DefaultRule,
		AsOf:      day(1),
	}
	bal, stats := Repair(in)
	// Day 0: 3 - 2 = 1. Day 1: 1 + 3 = 4, exempt.
	assert.Equal(t, 4.0, bal.Current)
	assert.Equal(t, 1, stats.EntriesExempt)
	assert.Equal(t, 1, stats.EntriesCosted)
}

func TestRepairQuantityAndIgnoredItems(t *testing.T) {
	q := 2.5
	neg := -1.0
	e := types.MealEntry{ID: "m", CreatedAt: day(0), Items: []types.ItemRef{
		{FoodID: "a", Quantity: &q},
		{FoodID: "ghost"},
		{FoodID: "a", Quantity: &neg},
	}}
	bal, stats := Repair(Input{
		Entries: []types.MealEntry{e},
		Costs:   costTable{"a": 1},
		Rule:    AccrualRule{Daily: 10, Cap: 10, Floor: 0, Ceiling: 100},
		AsOf:    day(0),
	})
	assert.Equal(t, 7.5, bal.Current)
	assert.Equal(t, 2, stats.ItemsIgnored)
}

func TestRepairNoEntries(t *testing.T) {
	bal, stats := Repair(Input{Rule: DefaultRule, AsOf: day(0)})
	assert.Equal(t, 3.0, bal.Current)
	assert.Equal(t, 1, stats.Days)

	bal, _ = Repair(Input{Rule: DefaultRule})
	assert.Equal(t, DefaultRule.Floor, bal.Current)
}

func TestRepairFutureEntries(t *testing.T) {
	bal, stats := Repair(Input{
		Entries: []types.MealEntry{mealOn("m", day(5), "a")},
		Costs:   costTable{"a": 1},
		Rule:    DefaultRule,
		AsOf:    day(0),
	})
	assert.Equal(t, 1, stats.EntriesFuture)
	assert.Equal(t, 3.0, bal.Current)
}

func TestRepairWithValidatedCatalog(t *testing.T) {
	entries := []types.MealEntry{mealOn("m", day(0), "a", "ghost")}
	res := validation.Validate(entries, validation.NewFoodSet("a"))
	_, stats := Repair(Input{Entries: res.Entries, Costs: costTable{"a": 1}, Rule: DefaultRule, AsOf: day(0)})
	assert.Zero(t, stats.ItemsIgnored, "validated entries resolve fully")
}

func randomInput(r *rand.Rand) Input {
	costs := costTable{"a": 1, "b": 2.5, "c": 7}
	foods := []string{"a", "b", "c", "ghost"}
	var entries []types.MealEntry
	for i := range r.IntN(40) {
		e := mealOn(fmt.Sprintf("m%d", i), day(r.IntN(20)).Add(time.Duration(r.IntN(600))*time.Minute))
		for range r.IntN(5) {
			e.Items = append(e.Items, types.ItemRef{FoodID: foods[r.IntN(len(foods))]})
		}
		entries = append(entries, e)
	}
	var flags []types.CheatDayFlag
	for range r.IntN(5) {
		flags = append(flags, types.CheatDayFlag{Date: day(r.IntN(20)).Format(types.DateLayout), Enabled: r.IntN(2) == 0})
	}
	return Input{
		Entries:   entries,
		CheatDays: types.NewCheatDays(flags),
		Costs:     costs,
		Rule:      AccrualRule{Daily: float64(r.IntN(5)), Cap: float64(r.IntN(20)), Floor: float64(r.IntN(3)), Ceiling: 10 + float64(r.IntN(50))},
		AsOf:      day(15 + r.IntN(10)),
	}
}

func TestRepairProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for i := range 500 {
		in := randomInput(r)
		a, sa := Repair(in)
		b, sb := Repair(in)
		require.Equal(t, a, b, "case %d: repair is not idempotent", i)
		require.Equal(t, sa, sb)
		want := clamp(min(in.Rule.Cap, float64(sa.Days)*in.Rule.Daily)-sa.Spent, in.Rule.Floor, in.Rule.Ceiling)
		require.InDelta(t, want, a.Current, 1e-9, "case %d: balance depends only on totals", i)
		if a.Current < in.Rule.Floor || a.Current > in.Rule.Ceiling {
			t.Fatalf("case %d: balance %v outside [%v, %v]", i, a.Current, in.Rule.Floor, in.Rule.Ceiling)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, DefaultRule.Validate())
	assert.Error(t, AccrualRule{Daily: -1, Ceiling: 1}.Validate())
	assert.Error(t, AccrualRule{Floor: 5, Ceiling: 1}.Validate())
}
