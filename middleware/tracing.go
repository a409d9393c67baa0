package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hollowcore/gjobq/runner"
)

// tracerName is the instrumentation scope name for this library's tracing.
const tracerName = "github.com/hollowcore/gjobq"

// Tracing returns middleware that wraps job execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: gjobq.gjs_id, gjobq.function_name,
// gjobq.attempt. On error, the span status is set to codes.Error with the
// error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *runner.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "gjobq.job.execute",
			trace.WithAttributes(
				attribute.String("gjobq.gjs_id", j.GJSID),
				attribute.String("gjobq.function_name", j.FunctionName),
				attribute.Int("gjobq.attempt", j.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
