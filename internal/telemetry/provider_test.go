package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/timeline/internal/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "timeline", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitProviderDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitProvider(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))

	_, span := StartCommandSpan(ctx, "show")
	assert.False(t, span.SpanContext().IsValid(), "noop provider yields invalid span contexts")
	span.End()
}

func TestInitProviderWithExporter(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = exporter

	shutdown, err := InitProvider(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = InitProvider(ctx, DefaultConfig()) })

	_, span := StartCommandSpan(ctx, "validate")
	span.End()

	require.Len(t, exporter.GetSpans(), 1)
	assert.NoError(t, ForceFlush(ctx))
	assert.NoError(t, shutdown(ctx))
}

func TestInitProviderLogsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelDebug, Format: log.FormatJSON, Output: log.NewOutput(&buf)})

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Logger = logger

	_, err := InitProvider(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = InitProvider(ctx, DefaultConfig()) })

	_, span := StartCommandSpan(ctx, "critical")
	span.End()

	assert.Contains(t, buf.String(), `"span":"command.critical"`)
	assert.Contains(t, buf.String(), `"component":"telemetry"`)
}

func TestInitProviderRejectsSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = 1.5

	_, err := InitProvider(context.Background(), cfg)
	assert.Error(t, err)
}

func TestShutdownForceFlush(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Shutdown(ctx))
	assert.NoError(t, ForceFlush(ctx))
}
