package telemetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/timeline/internal/errors"
)

// setupTestTracer installs a provider backed by an in-memory exporter
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(createResource(DefaultConfig())),
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	providerMu.Lock()
	globalProvider = tp
	providerMu.Unlock()

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		providerMu.Lock()
		globalProvider = nil
		providerMu.Unlock()
	})
	return exporter
}

func attrs(s tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStartCommandSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	ctx := context.Background()

	spanCtx, span := StartCommandSpan(ctx, "update")
	require.NotNil(t, span)
	assert.NotEqual(t, ctx, spanCtx)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "command.update", spans[0].Name)
	a := attrs(spans[0])
	assert.Equal(t, "update", a["command"].AsString())
	assert.Equal(t, "cli", a["component"].AsString())
}

func TestOperationSpanIsChildOfCommand(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := StartCommandSpan(context.Background(), "move")
	_, child := StartOperationSpan(ctx, "move_right")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "editor.move_right", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, "editor", attrs(spans[0])["component"].AsString())
}

func TestRecordSuccess(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartOperationSpan(context.Background(), "update_task")
	RecordSuccess(span, attribute.Int("changed", 3))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, int64(3), attrs(spans[0])["changed"].AsInt64())
}

func TestRecordError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"plain", fmt.Errorf("boom"), ""},
		{"coded", errors.New(errors.ErrCodeDependencyCycle, "cycle"), "DEP-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracer(t)

			_, span := StartCommandSpan(context.Background(), "link")
			RecordError(span, tt.err)
			span.End()

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status.Code)
			assert.Len(t, spans[0].Events, 1, "error event")
			a := attrs(spans[0])
			assert.True(t, a["error"].AsBool())
			code, ok := a["error_code"]
			assert.Equal(t, tt.wantCode != "", ok)
			if ok {
				assert.Equal(t, tt.wantCode, code.AsString())
			}
		})
	}
}

func TestRecordErrorWithNil(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartCommandSpan(context.Background(), "show")
	RecordError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)
}

func TestRecordCounts(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartOperationSpan(context.Background(), "enforce")
	RecordCounts(span, map[string]int64{"edges_visited": 7, "moved": 2})
	span.End()

	a := attrs(exporter.GetSpans()[0])
	assert.Equal(t, int64(7), a["edges_visited"].AsInt64())
	assert.Equal(t, int64(2), a["moved"].AsInt64())
}

func TestTrace(t *testing.T) {
	exporter := setupTestTracer(t)

	n, err := Trace(context.Background(), "load_project", func(context.Context) (int, error) {
		return 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = Trace(context.Background(), "save_project", func(context.Context) (string, error) {
		return "ignored", errors.New(errors.ErrCodeFileWriteFailed, "disk full")
	})
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "IO-003", attrs(spans[1])["error_code"].AsString())
}
