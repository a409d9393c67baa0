// Package ext defines the extension system this library exposes around
// a job's lifecycle. Each lifecycle hook is a separate interface so
// extensions opt in only to the events they care about — adapted from
// the teacher's workflow/cron-inclusive hook set down to the events this
// spec's job state machine actually has.
package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/hollowcore/gjobq/runner"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	Name() string
}

// JobEnqueued is called when Registry.EmitJobEnqueued is called for a
// job submitted to the queue. Neither gjobq.Client nor worker.Pool calls
// EmitJobEnqueued itself.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *runner.Job) error
}

// JobStarted is called when an attempt begins executing.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *runner.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *runner.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally (retries exhausted).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *runner.Job, err error) error
}

// JobRetrying is called when an attempt fails but another is scheduled.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *runner.Job, attempt int, delay time.Duration) error
}

// JobTimedOut is called when an attempt is cancelled for exceeding its
// configured timeout.
type JobTimedOut interface {
	OnJobTimedOut(ctx context.Context, j *runner.Job) error
}

// JobCancelled is called when a job's context is cancelled while it
// waits between attempts.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *runner.Job) error
}

// Shutdown is called when Registry.EmitShutdown is called. Neither
// gjobq.Client nor worker.Pool calls EmitShutdown itself.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}
type jobStartedEntry struct {
	name string
	hook JobStarted
}
type jobCompletedEntry struct {
	name string
	hook JobCompleted
}
type jobFailedEntry struct {
	name string
	hook JobFailed
}
type jobRetryingEntry struct {
	name string
	hook JobRetrying
}
type jobTimedOutEntry struct {
	name string
	hook JobTimedOut
}
type jobCancelledEntry struct {
	name string
	hook JobCancelled
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them, type-caching each extension's applicable hooks at
// registration time.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued  []jobEnqueuedEntry
	jobStarted   []jobStartedEntry
	jobCompleted []jobCompletedEntry
	jobFailed    []jobFailedEntry
	jobRetrying  []jobRetryingEntry
	jobTimedOut  []jobTimedOutEntry
	jobCancelled []jobCancelledEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry. A nil logger falls back to
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds e and type-asserts it into every applicable hook cache.
// Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(JobTimedOut); ok {
		r.jobTimedOut = append(r.jobTimedOut, jobTimedOutEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []Extension { return r.extensions }

func (r *Registry) EmitJobEnqueued(ctx context.Context, j *runner.Job) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

func (r *Registry) EmitJobStarted(ctx context.Context, j *runner.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

func (r *Registry) EmitJobCompleted(ctx context.Context, j *runner.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

func (r *Registry) EmitJobFailed(ctx context.Context, j *runner.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

func (r *Registry) EmitJobRetrying(ctx context.Context, j *runner.Job, attempt int, delay time.Duration) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, delay); err != nil {
			r.logHookError("OnJobRetrying", e.name, err)
		}
	}
}

func (r *Registry) EmitJobTimedOut(ctx context.Context, j *runner.Job) {
	for _, e := range r.jobTimedOut {
		if err := e.hook.OnJobTimedOut(ctx, j); err != nil {
			r.logHookError("OnJobTimedOut", e.name, err)
		}
	}
}

func (r *Registry) EmitJobCancelled(ctx context.Context, j *runner.Job) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, j); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block a job.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
