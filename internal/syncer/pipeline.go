package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/mealsync/internal/codec"
	"github.com/steveyegge/mealsync/internal/merge"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/telemetry"
	"github.com/steveyegge/mealsync/internal/types"
	"github.com/steveyegge/mealsync/internal/validation"
)

// stage carries the cross-collection inputs of one pipeline.
type stage struct {
	// catalog narrows meal items. Nil skips validation.
	catalog validation.Catalog
	// skipReason is noted when a meals pipeline runs without a catalog.
	skipReason string
	// baseline seeds an empty baseline collection.
	baseline *types.Baseline
}

// replica is one side of a collection after decoding.
type replica struct {
	entities map[string]types.Entity
	skipped  int
	// raw holds local records that failed to decode, keyed by identity.
	// They are written back untouched so a newer client can still read them.
	raw []rawRecord
}

type rawRecord struct {
	key string
	rec storage.Record
}

// runCollection drives one collection through the state machine and returns
// the merged, validated entities. The result is nil when the pipeline failed
// before the local write.
func (o *Orchestrator) runCollection(ctx context.Context, userID string, c types.Collection, rep *CollectionReport, st stage) (merged map[string]types.Entity) {
	start := time.Now()
	defer func() {
		rep.Duration = time.Since(start)
		telemetry.RecordSync(ctx, telemetry.CollectionSync{
			Collection: string(c),
			State:      string(rep.State),
			Merged:     rep.Merged,
			Pushed:     rep.Pushed,
			Skipped:    rep.Skipped,
			Removed:    rep.Removed,
			Duration:   rep.Duration,
		})
		if rep.Failed() {
			o.log.Warn("collection sync failed", "user", userID, "collection", c, "step", rep.FailedAt, "error", rep.Err())
		} else {
			o.log.Info("collection synced", "user", userID, "collection", c,
				"merged", rep.Merged, "pushed", rep.Pushed, "skipped", rep.Skipped, "removed", rep.Removed)
		}
	}()

	rep.enter(StateFetchLocal)
	local, err := o.fetchLocal(ctx, userID, c)
	if err != nil {
		rep.fail(fmt.Errorf("fetch local %s: %w", c, err))
		return nil
	}
	rep.Skipped += local.skipped

	// A failed remote fetch leaves the local value as it was.
	rep.enter(StateFetchRemote)
	remote, err := o.fetchRemote(ctx, userID, c)
	if err != nil {
		rep.fail(fmt.Errorf("fetch remote %s: %w", c, err))
		return nil
	}
	rep.Skipped += remote.skipped

	rep.enter(StateMerge)
	if st.baseline != nil && len(local.entities) == 0 && len(remote.entities) == 0 {
		local.entities[types.BaselineKey] = *st.baseline
		rep.note(fmt.Sprintf("baseline seeded from earliest weight on %s", st.baseline.Date))
	}
	merged = merge.Merge(local.entities, remote.entities)
	diff := merge.Compare(local.entities, remote.entities)
	rep.Merged = len(merged)
	rep.LocalOnly = len(diff.LocalOnly)
	rep.RemoteOnly = len(diff.RemoteOnly)

	if c == types.CollectionMeals {
		rep.enter(StateValidate)
		if st.catalog == nil {
			rep.note(st.skipReason)
		} else {
			o.narrow(merged, st.catalog, rep)
		}
	}

	rep.enter(StatePersistLocal)
	if err := o.persistLocal(ctx, userID, c, merged, local.raw); err != nil {
		rep.fail(fmt.Errorf("persist local %s: %w", c, err))
		return nil
	}

	if o.push && len(diff.LocalOnly) > 0 {
		rep.enter(StatePersistRemote)
		// Local-only records are pushed as they were stored, before
		// narrowing; the remote copy keeps references this device could
		// not resolve yet.
		n, err := o.pushLocalOnly(ctx, userID, c, local.entities, diff.LocalOnly)
		if err != nil {
			rep.fail(fmt.Errorf("persist remote %s: %w", c, err))
			return merged
		}
		rep.Pushed = n
	}

	rep.enter(StateDone)
	return merged
}

func (o *Orchestrator) fetchLocal(ctx context.Context, userID string, c types.Collection) (replica, error) {
	recs, err := storage.ReadSnapshot(ctx, o.local, storage.LocalKey(c, userID))
	if err != nil {
		return replica{}, err
	}
	out := replica{entities: make(map[string]types.Entity, len(recs))}
	for _, rec := range recs {
		e, err := codec.Decode(c, rec)
		if err != nil {
			out.skipped++
			var de *codec.DecodeError
			key := ""
			if errors.As(err, &de) {
				key = de.Key
			}
			out.raw = append(out.raw, rawRecord{key: key, rec: rec})
			o.log.Debug("skipping undecodable local record", "collection", c, "key", key, "error", err)
			continue
		}
		out.entities[e.Key()] = e
	}
	return out, nil
}

func (o *Orchestrator) fetchRemote(ctx context.Context, userID string, c types.Collection) (replica, error) {
	docs, err := o.remote.ListCollection(ctx, userID, c)
	if err != nil {
		return replica{}, err
	}
	out := replica{entities: make(map[string]types.Entity, len(docs))}
	for _, doc := range docs {
		rec, err := storage.RecordFromDocument(doc)
		if err == nil {
			var e types.Entity
			if e, err = codec.Decode(c, rec); err == nil {
				out.entities[e.Key()] = e
				continue
			}
		}
		out.skipped++
		o.log.Debug("skipping undecodable remote document", "collection", c, "id", doc.ID, "error", err)
	}
	return out, nil
}

// narrow replaces merged meals with their validated versions.
func (o *Orchestrator) narrow(merged map[string]types.Entity, catalog validation.Catalog, rep *CollectionReport) {
	meals := make([]types.MealEntry, 0, len(merged))
	for _, e := range merge.Values(merged) {
		if m, ok := e.(types.MealEntry); ok {
			meals = append(meals, m)
		}
	}
	res := validation.Validate(meals, catalog)
	for _, m := range res.Entries {
		merged[m.ID] = m
	}
	rep.Removed = res.RemovedCount
	rep.Narrowed = res.Narrowed
}

func (o *Orchestrator) persistLocal(ctx context.Context, userID string, c types.Collection, merged map[string]types.Entity, raw []rawRecord) error {
	recs, err := codec.EncodeAll(merge.Ordered(c, merged))
	if err != nil {
		return err
	}
	for _, r := range raw {
		if _, replaced := merged[r.key]; replaced && r.key != "" {
			continue
		}
		recs = append(recs, r.rec)
	}
	value, err := storage.EncodeSnapshot(recs)
	if err != nil {
		return err
	}
	return o.local.Write(ctx, storage.LocalKey(c, userID), value)
}

func (o *Orchestrator) pushLocalOnly(ctx context.Context, userID string, c types.Collection, local map[string]types.Entity, keys []string) (int, error) {
	docs := make([]storage.Document, 0, len(keys))
	for _, k := range keys {
		rec, err := codec.Encode(local[k])
		if err != nil {
			return 0, err
		}
		doc, err := storage.DocumentFromRecord(k, rec)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	if err := o.remote.PutBatch(ctx, userID, c, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
