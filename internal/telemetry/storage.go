package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

const storageScopeName = "github.com/steveyegge/mealsync/storage"

// instruments is shared by the local and remote decorators. Every adapter
// call gets a span and is counted in mealsync.storage.* metrics.
type instruments struct {
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

func newInstruments(side string) *instruments {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("mealsync.storage.operations",
		metric.WithDescription("Total storage adapter operations executed"),
	)
	dur, _ := m.Float64Histogram("mealsync.storage.operation.duration",
		metric.WithDescription("Storage adapter operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("mealsync.storage.errors",
		metric.WithDescription("Total storage adapter errors"),
	)
	return &instruments{
		tracer: Tracer(storageScopeName + "/" + side),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *instruments) op(ctx context.Context, side, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{
		attribute.String("db.operation", name),
		attribute.String("mealsync.store", side),
	}, attrs...)
	ctx, span := s.tracer.Start(ctx, side+"."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
// Not-found results are expected and are not counted as errors.
func (s *instruments) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil && !storage.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.class", errorClass(err)))...))
	}
	span.End()
}

func errorClass(err error) string {
	switch {
	case storage.IsTransient(err):
		return "transient"
	case storage.IsPermissionDenied(err):
		return "permission"
	default:
		return "other"
	}
}

// InstrumentedLocal wraps a storage.LocalStore with OTel tracing and metrics.
type InstrumentedLocal struct {
	inner storage.LocalStore
	in    *instruments
}

// WrapLocal returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapLocal(s storage.LocalStore) storage.LocalStore {
	if !Enabled() {
		return s
	}
	return &InstrumentedLocal{inner: s, in: newInstruments("local")}
}

func (s *InstrumentedLocal) Read(ctx context.Context, key string) ([]byte, error) {
	attrs := []attribute.KeyValue{attribute.String("mealsync.key", key)}
	ctx, span, t := s.in.op(ctx, "local", "Read", attrs...)
	v, err := s.inner.Read(ctx, key)
	span.SetAttributes(attribute.Int("mealsync.bytes", len(v)))
	s.in.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedLocal) Write(ctx context.Context, key string, value []byte) error {
	attrs := []attribute.KeyValue{attribute.String("mealsync.key", key)}
	ctx, span, t := s.in.op(ctx, "local", "Write", attrs...)
	err := s.inner.Write(ctx, key, value)
	s.in.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedLocal) WriteBatch(ctx context.Context, values map[string][]byte) error {
	ctx, span, t := s.in.op(ctx, "local", "WriteBatch", attribute.Int("mealsync.keys", len(values)))
	err := s.inner.WriteBatch(ctx, values)
	s.in.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedLocal) Delete(ctx context.Context, key string) error {
	attrs := []attribute.KeyValue{attribute.String("mealsync.key", key)}
	ctx, span, t := s.in.op(ctx, "local", "Delete", attrs...)
	err := s.inner.Delete(ctx, key)
	s.in.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedLocal) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span, t := s.in.op(ctx, "local", "Keys")
	v, err := s.inner.Keys(ctx, prefix)
	s.in.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedLocal) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, span, t := s.in.op(ctx, "local", "GetMetadata")
	v, err := s.inner.GetMetadata(ctx, key)
	s.in.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedLocal) SetMetadata(ctx context.Context, key, value string) error {
	ctx, span, t := s.in.op(ctx, "local", "SetMetadata")
	err := s.inner.SetMetadata(ctx, key, value)
	s.in.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedLocal) DeleteMetadata(ctx context.Context, key string) error {
	ctx, span, t := s.in.op(ctx, "local", "DeleteMetadata")
	err := s.inner.DeleteMetadata(ctx, key)
	s.in.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedLocal) Close() error { return s.inner.Close() }

// InstrumentedRemote wraps a storage.RemoteStore with OTel tracing and metrics.
type InstrumentedRemote struct {
	inner storage.RemoteStore
	in    *instruments
}

// WrapRemote returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapRemote(s storage.RemoteStore) storage.RemoteStore {
	if !Enabled() {
		return s
	}
	return &InstrumentedRemote{inner: s, in: newInstruments("remote")}
}

func remoteAttrs(c types.Collection) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("mealsync.collection", string(c))}
}

func (s *InstrumentedRemote) GetDocument(ctx context.Context, userID string, c types.Collection, id string) (storage.Document, error) {
	attrs := remoteAttrs(c)
	ctx, span, t := s.in.op(ctx, "remote", "GetDocument", attrs...)
	v, err := s.inner.GetDocument(ctx, userID, c, id)
	s.in.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedRemote) PutDocument(ctx context.Context, userID string, c types.Collection, doc storage.Document) error {
	attrs := remoteAttrs(c)
	ctx, span, t := s.in.op(ctx, "remote", "PutDocument", attrs...)
	err := s.inner.PutDocument(ctx, userID, c, doc)
	s.in.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRemote) DeleteDocument(ctx context.Context, userID string, c types.Collection, id string) error {
	attrs := remoteAttrs(c)
	ctx, span, t := s.in.op(ctx, "remote", "DeleteDocument", attrs...)
	err := s.inner.DeleteDocument(ctx, userID, c, id)
	s.in.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRemote) ListCollection(ctx context.Context, userID string, c types.Collection) ([]storage.Document, error) {
	attrs := remoteAttrs(c)
	ctx, span, t := s.in.op(ctx, "remote", "ListCollection", attrs...)
	v, err := s.inner.ListCollection(ctx, userID, c)
	span.SetAttributes(attribute.Int("mealsync.documents", len(v)))
	s.in.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedRemote) PutBatch(ctx context.Context, userID string, c types.Collection, docs []storage.Document) error {
	attrs := remoteAttrs(c)
	ctx, span, t := s.in.op(ctx, "remote", "PutBatch", append(attrs, attribute.Int("mealsync.documents", len(docs)))...)
	err := s.inner.PutBatch(ctx, userID, c, docs)
	s.in.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRemote) Close() error { return s.inner.Close() }
