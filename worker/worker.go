// Package worker provides the Gearman-connected worker pool: one
// goroutine-isolated child worker per (function, instance) pair,
// dequeuing from every configured Gearman server and running registered
// functions through a Runner.
package worker

import (
	"context"
	"log/slog"

	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/function"
	"github.com/hollowcore/gjobq/id"
	"github.com/hollowcore/gjobq/identity"
	"github.com/hollowcore/gjobq/progress"
	"github.com/hollowcore/gjobq/queue"
	"github.com/hollowcore/gjobq/runner"
)

// backendProgressReporter forwards a running function's progress
// updates back to Gearman as WORK_STATUS packets on the same backend
// connection the job was grabbed from, satisfying spec §4.6's "report
// forwards to the queue's per-job status channel" contract for jobs
// running under a worker.
type backendProgressReporter struct {
	backend queue.Backend
	handle  string
}

var _ progress.Reporter = backendProgressReporter{}

func (r backendProgressReporter) Report(ctx context.Context, numerator, denominator int) error {
	return r.backend.WorkStatus(ctx, r.handle, numerator, denominator)
}

// grabbedJob pairs an assigned job with the backend connection it was
// grabbed from, since a WORK_COMPLETE/WORK_FAIL reply must go back on
// that same connection.
type grabbedJob struct {
	backend queue.Backend
	job     *queue.AssignedJob
}

// worker is one goroutine-isolated child worker bound to a single
// function name. It holds its own dedicated connection to every
// configured Gearman server — no connection is shared with another
// worker, so a stalled or crashed peer never blocks this one.
type worker struct {
	id           id.WorkerID
	functionName string
	desc         *function.Descriptor
	runner       *runner.Runner
	backends     []queue.Backend
	logger       *slog.Logger
}

// run registers the worker's function with every backend, then dequeues
// and executes jobs until ctx is cancelled or every backend connection
// fails. A failed reply send makes run return that error at once. A
// grab error on a backend ends that backend's grab loop; once every
// backend's loop has exited, run itself returns the first such error. It never
// respawns — that is the Pool supervisor's call to make, and by design
// it doesn't either (spec.md §9's minimal respawn policy).
func (w *worker) run(ctx context.Context) error {
	registered := 0
	var lastRegisterErr error
	for _, b := range w.backends {
		if err := b.RegisterFunction(ctx, w.functionName, w.desc.Timeout); err != nil {
			lastRegisterErr = err
			w.logger.Warn("worker: register function failed",
				slog.String("worker", w.id.String()),
				slog.String("function", w.functionName),
				slog.String("error", err.Error()),
			)
			continue
		}
		registered++
	}
	if registered == 0 {
		return &function.BackendRegistrationError{Name: w.functionName, Err: lastRegisterErr}
	}

	jobs := make(chan grabbedJob)
	grabErrs := make(chan error, len(w.backends))
	done := make(chan struct{}, len(w.backends))
	remaining := len(w.backends)

	for _, b := range w.backends {
		go func(b queue.Backend) {
			for {
				aj, err := b.GrabJob(ctx)
				if err != nil {
					grabErrs <- err
					done <- struct{}{}
					return
				}
				select {
				case jobs <- grabbedJob{backend: b, job: aj}:
				case <-ctx.Done():
					done <- struct{}{}
					return
				}
			}
		}(b)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker: context cancelled",
				slog.String("worker", w.id.String()),
				slog.String("function", w.functionName),
			)
			return ctx.Err()
		case gj := <-jobs:
			if err := w.handle(ctx, gj); err != nil {
				w.logger.Error("worker: fatal error replying to gearman",
					slog.String("worker", w.id.String()),
					slog.String("function", w.functionName),
					slog.String("handle", gj.job.Handle),
					slog.String("error", err.Error()),
				)
				return err
			}
		case <-done:
			remaining--
			if remaining == 0 {
				select {
				case err := <-grabErrs:
					return err
				default:
					return nil
				}
			}
		}
	}
}

// handle decodes, runs, and replies to one dequeued job. A function
// failure (the job's Run returned an error, or it timed out, or it
// exhausted retries) is reported to Gearman via WORK_FAIL and is not
// itself a fatal worker error — only a failure to send that reply is.
func (w *worker) handle(ctx context.Context, gj grabbedJob) error {
	args, err := codec.Decode(gj.job.Payload)
	if err != nil {
		w.logger.Error("worker: decode job payload failed",
			slog.String("function", w.functionName),
			slog.String("handle", gj.job.Handle),
			slog.String("error", err.Error()),
		)
		return gj.backend.WorkFail(ctx, gj.job.Handle)
	}

	var handle *identity.Handle
	if h, parseErr := identity.ParseHandle(gj.job.Handle); parseErr == nil {
		handle = &h
	} else {
		w.logger.Warn("worker: unparseable gearman handle",
			slog.String("handle", gj.job.Handle),
			slog.String("error", parseErr.Error()),
		)
	}

	reporter := backendProgressReporter{backend: gj.backend, handle: gj.job.Handle}
	result, runErr := w.runner.Run(ctx, w.desc, args, handle, reporter)
	if runErr != nil {
		w.logger.Warn("worker: job failed",
			slog.String("function", w.functionName),
			slog.String("handle", gj.job.Handle),
			slog.String("error", runErr.Error()),
		)
		return gj.backend.WorkFail(ctx, gj.job.Handle)
	}

	payload, encErr := codec.Encode(result)
	if encErr != nil {
		w.logger.Error("worker: encode result failed",
			slog.String("function", w.functionName),
			slog.String("handle", gj.job.Handle),
			slog.String("error", encErr.Error()),
		)
		return gj.backend.WorkFail(ctx, gj.job.Handle)
	}

	return gj.backend.WorkComplete(ctx, gj.job.Handle, payload)
}
