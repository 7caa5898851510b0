package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/timeline/internal/log"
)

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name reported on every span's resource
	ServiceName string

	// ServiceVersion is the version of the binary
	ServiceVersion string

	// Enabled determines whether tracing is enabled
	// When false, a noop tracer is used
	Enabled bool

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64

	// Exporter receives finished spans. When nil and Logger is set, spans
	// are written to the logger at debug level.
	Exporter sdktrace.SpanExporter

	// Logger receives finished spans when no Exporter is configured
	Logger *log.Logger
}

// DefaultConfig returns the CLI default: tracing disabled
func DefaultConfig() Config {
	return Config{
		ServiceName:    "timeline",
		ServiceVersion: "dev",
		Enabled:        false,
		SampleRate:     1.0,
	}
}
