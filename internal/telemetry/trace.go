package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/timeline/internal/errors"
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "update")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartOperationSpan creates a child span for one editor mutation or query.
func StartOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("editor")
	ctx, span := tracer.Start(ctx, "editor."+operation)

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("component", "editor"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
// Coded errors also set an error_code attribute.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("error_code", string(code)))
	}
}

// RecordCounts records integer results as span attributes.
//
//	telemetry.RecordCounts(span, map[string]int64{"changed": 3, "edges_visited": 7})
func RecordCounts(span trace.Span, counts map[string]int64) {
	for key, value := range counts {
		span.SetAttributes(attribute.Int64(key, value))
	}
}

// Trace wraps fn in a span named name, recording its error status.
func Trace[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	tracer := GetTracerProvider().Tracer("general")
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	result, err := fn(ctx)
	if err != nil {
		RecordError(span, err)
		var zero T
		return zero, err
	}

	RecordSuccess(span)
	return result, nil
}
