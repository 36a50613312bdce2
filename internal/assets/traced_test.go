package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTraced_SpanPerOperation(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := NewTracedWithProvider(NewDiskStore(filepath.Join(t.TempDir(), "u"), nil), tp)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	a, err := s.Put(ctx, []byte("abc"), "pic.png")
	require.NoError(t, err)
	_, err = s.List(ctx)
	require.NoError(t, err)
	blob, err := s.Open(ctx, a.ID)
	require.NoError(t, err)
	_ = blob.Body.Close()
	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "../x"), ErrPathTraversal)

	spans := rec.Ended()
	require.Len(t, spans, 7)

	names := make([]string, 0, len(spans))
	for _, sp := range spans {
		names = append(names, sp.Name())
	}
	assert.Equal(t, []string{
		"assets.initialize", "assets.put", "assets.list", "assets.open",
		"assets.delete", "assets.delete", "assets.delete",
	}, names)

	assert.Equal(t, codes.Unset, spans[5].Status().Code, "not found is not a span error")
	assert.Equal(t, codes.Error, spans[6].Status().Code)
}
