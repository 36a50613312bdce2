package assets

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "picdrop/assets"

// Traced wraps a Store so every operation runs inside a span.
type Traced struct {
	next   Store
	tracer trace.Tracer
}

// NewTraced instruments next with the global tracer provider.
func NewTraced(next Store) *Traced {
	return &Traced{next: next, tracer: otel.Tracer(tracerName)}
}

// NewTracedWithProvider instruments next with an explicit provider.
func NewTracedWithProvider(next Store, tp trace.TracerProvider) *Traced {
	return &Traced{next: next, tracer: tp.Tracer(tracerName)}
}

func (t *Traced) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "assets."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	// A missing asset is an expected answer, not a failure of the store.
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *Traced) Initialize(ctx context.Context) error {
	ctx, span := t.start(ctx, "initialize")
	err := t.next.Initialize(ctx)
	finish(span, err)
	return err
}

func (t *Traced) Put(ctx context.Context, payload []byte, originalName string) (Asset, error) {
	ctx, span := t.start(ctx, "put",
		attribute.String("asset.original_name", originalName),
		attribute.Int("asset.size", len(payload)),
	)
	a, err := t.next.Put(ctx, payload, originalName)
	if err == nil {
		span.SetAttributes(attribute.String("asset.id", a.ID))
	}
	finish(span, err)
	return a, err
}

func (t *Traced) List(ctx context.Context) ([]Asset, error) {
	ctx, span := t.start(ctx, "list")
	out, err := t.next.List(ctx)
	span.SetAttributes(attribute.Int("asset.count", len(out)))
	finish(span, err)
	return out, err
}

func (t *Traced) Delete(ctx context.Context, id string) error {
	ctx, span := t.start(ctx, "delete", attribute.String("asset.id", id))
	err := t.next.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("asset.found", false))
	}
	finish(span, err)
	return err
}

func (t *Traced) Open(ctx context.Context, id string) (*Blob, error) {
	ctx, span := t.start(ctx, "open", attribute.String("asset.id", id))
	b, err := t.next.Open(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Int64("asset.size", b.Size))
	}
	finish(span, err)
	return b, err
}
