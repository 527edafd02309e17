package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const syncScopeName = "github.com/steveyegge/mealsync/syncer"

// CollectionSync is the outcome of one collection pipeline.
type CollectionSync struct {
	Collection string
	State      string
	Merged     int
	Pushed     int
	Skipped    int
	Removed    int
	Duration   time.Duration
}

var (
	syncOnce    sync.Once
	syncRuns    metric.Int64Counter
	syncRecords metric.Int64Counter
	syncDur     metric.Float64Histogram
)

func initSyncInstruments() {
	m := Meter(syncScopeName)
	syncRuns, _ = m.Int64Counter("mealsync.sync.collections",
		metric.WithDescription("Collection pipelines run, by final state"),
	)
	syncRecords, _ = m.Int64Counter("mealsync.sync.records",
		metric.WithDescription("Records handled by collection pipelines, by kind"),
	)
	syncDur, _ = m.Float64Histogram("mealsync.sync.collection.duration",
		metric.WithDescription("Collection pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// RecordSync records one collection pipeline outcome. It is a no-op when
// telemetry is disabled.
func RecordSync(ctx context.Context, cs CollectionSync) {
	if !Enabled() {
		return
	}
	syncOnce.Do(initSyncInstruments)

	coll := attribute.String("mealsync.collection", cs.Collection)
	syncRuns.Add(ctx, 1, metric.WithAttributes(coll, attribute.String("mealsync.state", cs.State)))
	syncDur.Record(ctx, float64(cs.Duration.Milliseconds()), metric.WithAttributes(coll))
	for kind, n := range map[string]int{
		"merged":  cs.Merged,
		"pushed":  cs.Pushed,
		"skipped": cs.Skipped,
		"removed": cs.Removed,
	} {
		if n > 0 {
			syncRecords.Add(ctx, int64(n), metric.WithAttributes(coll, attribute.String("mealsync.kind", kind)))
		}
	}
}
