package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hollowcore/gjobq/runner"
)

// meterName is the instrumentation scope name for this library's metrics.
const meterName = "github.com/hollowcore/gjobq"

// Metrics returns middleware that records per-attempt execution metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - gjobq.job.duration (Float64Histogram): execution time in seconds,
//     with attributes: function_name, status ("ok" or "error")
//   - gjobq.job.executions (Int64Counter): total attempts,
//     with attributes: function_name, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, dErr := meter.Float64Histogram(
		"gjobq.job.duration",
		metric.WithDescription("Duration of a job attempt in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"gjobq.job.executions",
		metric.WithDescription("Total number of job attempts"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, j *runner.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("function_name", j.FunctionName),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
