package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

func record(t *testing.T, s string) storage.Record {
	t.Helper()
	var rec storage.Record
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func TestDecodeMealCurrent(t *testing.T) {
	rec := record(t, `{
		"id": "m1",
		"label": "Poulet riz",
		"category": "lunch",
		"score": 7.5,
		"createdAt": "2025-03-01T12:30:00Z",
		"items": [{"foodId": "poulet", "quantity": 2}, {"foodId": "riz"}]
	}`)
	e, err := Decode(types.CollectionMeals, rec)
	require.NoError(t, err)

	m := e.(types.MealEntry)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "Poulet riz", m.Label)
	assert.Equal(t, "lunch", m.Category)
	assert.Equal(t, 7.5, m.Score)
	assert.True(t, m.CreatedAt.Equal(time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)))
	require.Len(t, m.Items, 2)
	assert.Equal(t, 2.0, m.Items[0].Servings())
	assert.Nil(t, m.Items[1].Quantity)
}

func TestDecodeMealDefaults(t *testing.T) {
	e, err := Decode(types.CollectionMeals, record(t, `{"id":"m2","createdAt":"2025-03-01T08:00:00Z"}`))
	require.NoError(t, err)
	m := e.(types.MealEntry)
	assert.Equal(t, DefaultCategory, m.Category)
	assert.Equal(t, 0.0, m.Score)
	assert.NotNil(t, m.Items)
	assert.Empty(t, m.Items)
}

func TestDecodeMealLegacy(t *testing.T) {
	rec := record(t, `{
		"id": 17,
		"name": "Toast",
		"timestamp": 1735732800000,
		"items": ["pain", {"food_id": "beurre", "quantity": 0.5}]
	}`)
	e, err := Decode(types.CollectionMeals, rec)
	require.NoError(t, err)

	m := e.(types.MealEntry)
	assert.Equal(t, "17", m.ID)
	assert.Equal(t, "Toast", m.Label)
	assert.Equal(t, "2025-01-01", m.Day())
	require.Len(t, m.Items, 2)
	assert.Equal(t, "pain", m.Items[0].FoodID)
	assert.Equal(t, "beurre", m.Items[1].FoodID)
	assert.Equal(t, 0.5, m.Items[1].Servings())
}

func TestDecodeFailsOnIdentity(t *testing.T) {
	tests := []struct {
		name string
		c    types.Collection
		raw  string
	}{
		{"meal without id", types.CollectionMeals, `{"createdAt":"2025-01-01T00:00:00Z"}`},
		{"meal with empty id", types.CollectionMeals, `{"id":"","createdAt":"2025-01-01T00:00:00Z"}`},
		{"meal without timestamp", types.CollectionMeals, `{"id":"m1"}`},
		{"meal with bad timestamp", types.CollectionMeals, `{"id":"m1","createdAt":"soon"}`},
		{"food without id", types.CollectionCustomFoods, `{"name":"x"}`},
		{"weight without date", types.CollectionWeights, `{"weight":70}`},
		{"weight without value", types.CollectionWeights, `{"date":"2025-01-01"}`},
		{"cheat day with bad date", types.CollectionCheatDays, `{"date":"not-a-date"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.c, record(t, tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, storage.ErrSchemaDecode), "want ErrSchemaDecode, got %v", err)
			assert.True(t, IsDecodeError(err))
		})
	}
}

func TestDecodeToleratesMalformedOptionalFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		score float64
		items []string
	}{
		{"string score", `{"id":"m1","createdAt":"2025-01-01T12:00:00Z","score":"3"}`, 3, nil},
		{"unreadable score", `{"id":"m1","createdAt":"2025-01-01T12:00:00Z","score":{"v":1}}`, 0, nil},
		{"items as object", `{"id":"m1","createdAt":"2025-01-01T12:00:00Z","items":{"foodId":"riz"}}`, 0, nil},
		{"stray item values", `{"id":"m1","createdAt":"2025-01-01T12:00:00Z","items":["poulet",42,null,true,""]}`, 0, []string{"poulet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode(types.CollectionMeals, record(t, tt.raw))
			require.NoError(t, err)
			m := e.(types.MealEntry)
			assert.Equal(t, "m1", m.ID)
			assert.Equal(t, tt.score, m.Score)
			var got []string
			for _, it := range m.Items {
				got = append(got, it.FoodID)
			}
			assert.Equal(t, tt.items, got)
		})
	}
}

func TestDecodeCheatDayEnabledForms(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"date":"2025-01-05","enabled":"true"}`, true},
		{`{"date":"2025-01-05","enabled":"false"}`, false},
		{`{"date":"2025-01-05","enabled":0}`, false},
		{`{"date":"2025-01-05","enabled":1}`, true},
		{`{"date":"2025-01-05","enabled":null}`, true},
		{`{"date":"2025-01-05","enabled":"maybe"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := Decode(types.CollectionCheatDays, record(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.(types.CheatDayFlag).Enabled)
		})
	}
}

func TestDecodeUnknownCollection(t *testing.T) {
	_, err := Decode(types.Collection("issues"), storage.Record{"id": "x"})
	assert.ErrorIs(t, err, storage.ErrSchemaDecode)
	_, err = Decode(types.CollectionMeals, nil)
	assert.ErrorIs(t, err, storage.ErrSchemaDecode)
}

func TestDecodeFoodFlatNutrients(t *testing.T) {
	e, err := Decode(types.CollectionCustomFoods, record(t, `{"id":"f1","name":"Soupe","calories":120,"protein":"4","point_cost":2}`))
	require.NoError(t, err)
	f := e.(types.FoodItem)
	assert.True(t, f.Custom)
	assert.Equal(t, 120.0, f.Nutrients.Calories)
	assert.Equal(t, 4.0, f.Nutrients.Protein)
	assert.Equal(t, 2.0, f.PointCost)
}

func TestDecodeWeightAndBaseline(t *testing.T) {
	e, err := Decode(types.CollectionWeights, record(t, `{"date":"2025-02-03T07:00:00Z","value":81.2}`))
	require.NoError(t, err)
	assert.Equal(t, types.WeightEntry{Date: "2025-02-03", Weight: 81.2}, e)

	e, err = Decode(types.CollectionBaseline, record(t, `{"date":"2025-01-01","weight":85}`))
	require.NoError(t, err)
	assert.Equal(t, types.Baseline{Date: "2025-01-01", Weight: 85}, e)
	assert.Equal(t, types.BaselineKey, e.Key())
}

func TestDecodeCheatDay(t *testing.T) {
	e, err := Decode(types.CollectionCheatDays, record(t, `{"date":"2025-01-05"}`))
	require.NoError(t, err)
	assert.Equal(t, types.CheatDayFlag{Date: "2025-01-05", Enabled: true}, e)

	e, err = Decode(types.CollectionCheatDays, record(t, `{"date":"2025-01-06","enabled":false}`))
	require.NoError(t, err)
	assert.False(t, e.(types.CheatDayFlag).Enabled)
}

func TestDecodeTargets(t *testing.T) {
	e, err := Decode(types.CollectionTargets, record(t, `{"nutrients":{"calories":2200,"fiber":30}}`))
	require.NoError(t, err)
	tg := e.(types.NutritionTargets)
	assert.Equal(t, 2200.0, tg.Calories)
	assert.Equal(t, 30.0, tg.Fiber)
	assert.Equal(t, types.TargetsKey, tg.Key())
}

func TestEncodeDecodeMeal(t *testing.T) {
	q := 1.5
	m := types.MealEntry{
		ID:        "m1",
		Label:     "Bowl",
		Category:  "dinner",
		Score:     3,
		CreatedAt: time.Date(2025, 4, 2, 19, 0, 0, 0, time.UTC),
		Items:     []types.ItemRef{{FoodID: "riz", Quantity: &q}},
	}
	rec, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, storage.SchemaVersion, rec[schemaVersionField])

	// Records reach Decode through JSON.
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	e, err := Decode(types.CollectionMeals, record(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, m, e)
}

func TestDecodeAllSkips(t *testing.T) {
	recs := []storage.Record{
		{"id": "a", "createdAt": "2025-01-01T00:00:00Z"},
		{"label": "no id"},
		{"id": "b", "createdAt": "2025-01-02T00:00:00Z"},
	}
	d := DecodeAll(types.CollectionMeals, recs)
	assert.Len(t, d.Entities, 2)
	assert.Equal(t, 1, d.Skipped)
	require.Len(t, d.Errors, 1)
	assert.ErrorIs(t, d.Errors[0], storage.ErrSchemaDecode)
}
