// Package codec converts stored records into entities and back.
//
// Decoding is where record-format drift is absorbed. Records written by
// older builds (schema version 1) may carry a bare list of food ids as meal
// items, snake_case or renamed fields, and Unix-millisecond timestamps; all
// of that is normalized here so no other package has to care. Decode only
// fails when a record lacks the fields that identify it; malformed optional
// fields fall back to their defaults and unreadable meal items are dropped.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

// DefaultCategory is given to meals recorded without one.
const DefaultCategory = "other"

// schemaVersionField is stamped on every encoded record.
const schemaVersionField = "schemaVersion"

var knownCollections = map[types.Collection]bool{
	types.CollectionMeals:       true,
	types.CollectionCustomFoods: true,
	types.CollectionWeights:     true,
	types.CollectionBaseline:    true,
	types.CollectionTargets:     true,
	types.CollectionCheatDays:   true,
	types.CollectionPoints:      true,
}

// DecodeError describes a record that could not be decoded. It matches
// storage.ErrSchemaDecode with errors.Is.
type DecodeError struct {
	Collection types.Collection
	Key        string
	Reason     string
}

func (e *DecodeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("decode %s record %q: %s", e.Collection, e.Key, e.Reason)
	}
	return fmt.Sprintf("decode %s record: %s", e.Collection, e.Reason)
}

func (e *DecodeError) Unwrap() error { return storage.ErrSchemaDecode }

// Decode converts one record of collection c into its entity.
func Decode(c types.Collection, rec storage.Record) (types.Entity, error) {
	if !knownCollections[c] {
		return nil, &DecodeError{Collection: c, Reason: "unknown collection"}
	}
	if rec == nil {
		return nil, &DecodeError{Collection: c, Reason: "null record"}
	}
	if err := checkRequired(c, rec); err != nil {
		return nil, &DecodeError{Collection: c, Key: identity(rec), Reason: err.Error()}
	}

	var (
		e   types.Entity
		err error
	)
	switch c {
	case types.CollectionMeals:
		e, err = decodeMeal(rec)
	case types.CollectionCustomFoods:
		e, err = decodeFood(rec)
	case types.CollectionWeights:
		e, err = decodeWeight(rec)
	case types.CollectionBaseline:
		e, err = decodeBaseline(rec)
	case types.CollectionTargets:
		e = types.NutritionTargets{Nutrients: decodeNutrients(rec)}
	case types.CollectionCheatDays:
		e, err = decodeCheatDay(rec)
	case types.CollectionPoints:
		e, err = decodePoints(rec)
	}
	if err != nil {
		return nil, &DecodeError{Collection: c, Key: identity(rec), Reason: err.Error()}
	}
	return e, nil
}

// Encode converts an entity into a record of the current schema version.
func Encode(e types.Entity) (storage.Record, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", e, err)
	}
	var rec storage.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encode %T: %w", e, err)
	}
	rec[schemaVersionField] = storage.SchemaVersion
	return rec, nil
}

// Decoded is the outcome of DecodeAll.
type Decoded struct {
	Entities []types.Entity
	Skipped  int
	Errors   []error
}

// DecodeAll decodes every record, skipping and counting the ones that fail.
// Other errors are not expected here; every failure is a DecodeError.
func DecodeAll(c types.Collection, recs []storage.Record) Decoded {
	out := Decoded{Entities: make([]types.Entity, 0, len(recs))}
	for _, rec := range recs {
		e, err := Decode(c, rec)
		if err != nil {
			out.Skipped++
			out.Errors = append(out.Errors, err)
			continue
		}
		out.Entities = append(out.Entities, e)
	}
	return out
}

// EncodeAll encodes entities in order.
func EncodeAll(es []types.Entity) ([]storage.Record, error) {
	out := make([]storage.Record, 0, len(es))
	for _, e := range es {
		rec, err := Encode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// IsDecodeError reports whether err is a record decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func identity(rec storage.Record) string {
	for _, k := range []string{"id", "date"} {
		if s, ok := stringField(rec, k); ok {
			return s
		}
	}
	return ""
}

func decodeMeal(rec storage.Record) (types.MealEntry, error) {
	id, _ := stringField(rec, "id")
	if strings.TrimSpace(id) == "" {
		return types.MealEntry{}, errors.New("empty id")
	}
	created, err := timeField(rec, "createdAt", "created_at", "timestamp")
	if err != nil {
		return types.MealEntry{}, err
	}

	m := types.MealEntry{
		ID:        id,
		Category:  DefaultCategory,
		CreatedAt: created,
		Items:     []types.ItemRef{},
	}
	if label, ok := stringField(rec, "label", "name"); ok {
		m.Label = label
	}
	if cat, ok := stringField(rec, "category"); ok && cat != "" {
		m.Category = cat
	}
	if score, ok := numberField(rec, "score"); ok {
		m.Score = score
	}

	raw, _ := rec["items"].([]any)
	for _, it := range raw {
		if ref, ok := decodeItem(it); ok {
			m.Items = append(m.Items, ref)
		}
	}
	return m, nil
}

// decodeItem reads one meal item. Anything but a food id or an item object
// is not an item.
func decodeItem(v any) (types.ItemRef, bool) {
	switch it := v.(type) {
	case string:
		// v1 stored items as bare food ids.
		return types.ItemRef{FoodID: it}, it != ""
	case map[string]any:
		id, _ := stringField(it, "foodId", "food_id", "id")
		ref := types.ItemRef{FoodID: id}
		if q, ok := numberField(it, "quantity", "qty"); ok {
			ref.Quantity = &q
		}
		return ref, true
	default:
		return types.ItemRef{}, false
	}
}

func decodeFood(rec storage.Record) (types.FoodItem, error) {
	id, _ := stringField(rec, "id")
	if strings.TrimSpace(id) == "" {
		return types.FoodItem{}, errors.New("empty id")
	}
	f := types.FoodItem{ID: id, Custom: true, Nutrients: decodeNutrients(rec)}
	f.Name, _ = stringField(rec, "name", "label")
	f.PointCost, _ = numberField(rec, "pointCost", "point_cost", "points")
	return f, nil
}

// decodeNutrients reads nutrients nested under "nutrients" or, for older
// records, flat on the record itself.
func decodeNutrients(rec storage.Record) types.Nutrients {
	src := rec
	if nested, ok := rec["nutrients"].(map[string]any); ok {
		src = nested
	}
	var n types.Nutrients
	n.Calories, _ = numberField(src, "calories", "kcal")
	n.Protein, _ = numberField(src, "protein")
	n.Carbs, _ = numberField(src, "carbs", "carbohydrates")
	n.Fat, _ = numberField(src, "fat")
	n.Fiber, _ = numberField(src, "fiber", "fibre")
	return n
}

func decodeDayWeight(rec storage.Record) (string, float64, error) {
	raw, _ := stringField(rec, "date")
	day, err := types.ParseDay(raw)
	if err != nil {
		return "", 0, err
	}
	w, ok := numberField(rec, "weight", "value")
	if !ok {
		return "", 0, errors.New("weight is not a number")
	}
	return day, w, nil
}

func decodeWeight(rec storage.Record) (types.WeightEntry, error) {
	day, w, err := decodeDayWeight(rec)
	if err != nil {
		return types.WeightEntry{}, err
	}
	return types.WeightEntry{Date: day, Weight: w}, nil
}

func decodeBaseline(rec storage.Record) (types.Baseline, error) {
	day, w, err := decodeDayWeight(rec)
	if err != nil {
		return types.Baseline{}, err
	}
	return types.Baseline{Date: day, Weight: w}, nil
}

func decodeCheatDay(rec storage.Record) (types.CheatDayFlag, error) {
	raw, _ := stringField(rec, "date")
	day, err := types.ParseDay(raw)
	if err != nil {
		return types.CheatDayFlag{}, err
	}
	return types.CheatDayFlag{Date: day, Enabled: boolField(rec, "enabled", true)}, nil
}

func decodePoints(rec storage.Record) (types.PointBalance, error) {
	var p types.PointBalance
	p.Current, _ = numberField(rec, "current")
	p.LifetimeTotal, _ = numberField(rec, "lifetimeTotal", "lifetime_total")
	p.LastClaimDate, _ = stringField(rec, "lastClaimDate", "last_claim_date")
	if _, ok := rec["computedAt"]; ok {
		t, err := timeField(rec, "computedAt")
		if err != nil {
			return p, err
		}
		p.ComputedAt = t
	}
	return p, nil
}
