// Package observability provides an ext.Extension that records
// lifecycle metrics for every job attempt via go-utils' MetricFactory.
package observability

import (
	"context"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/hollowcore/gjobq/ext"
	"github.com/hollowcore/gjobq/runner"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobRetrying  = (*MetricsExtension)(nil)
	_ ext.JobTimedOut  = (*MetricsExtension)(nil)
	_ ext.JobCancelled = (*MetricsExtension)(nil)
)

// MetricsExtension records job lifecycle metrics via go-utils'
// MetricFactory. Register it as an extension to automatically track
// enqueue rates, completion counts, failure rates, retry counts, timeout
// counts, and cancellation counts.
type MetricsExtension struct {
	JobEnqueued  gu.Counter
	JobCompleted gu.Counter
	JobFailed    gu.Counter
	JobRetried   gu.Counter
	JobTimedOut  gu.Counter
	JobCancelled gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics
// collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("gjobq/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the
// provided MetricFactory.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		JobEnqueued:  factory.Counter("gjobq.job.enqueued"),
		JobCompleted: factory.Counter("gjobq.job.completed"),
		JobFailed:    factory.Counter("gjobq.job.failed"),
		JobRetried:   factory.Counter("gjobq.job.retried"),
		JobTimedOut:  factory.Counter("gjobq.job.timed_out"),
		JobCancelled: factory.Counter("gjobq.job.cancelled"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(_ context.Context, _ *runner.Job) error {
	m.JobEnqueued.Inc()
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, _ *runner.Job, _ time.Duration) error {
	m.JobCompleted.Inc()
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, _ *runner.Job, _ error) error {
	m.JobFailed.Inc()
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(_ context.Context, _ *runner.Job, _ int, _ time.Duration) error {
	m.JobRetried.Inc()
	return nil
}

// OnJobTimedOut implements ext.JobTimedOut.
func (m *MetricsExtension) OnJobTimedOut(_ context.Context, _ *runner.Job) error {
	m.JobTimedOut.Inc()
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(_ context.Context, _ *runner.Job) error {
	m.JobCancelled.Inc()
	return nil
}
