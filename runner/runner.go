// Package runner executes one job's attempt sequence: deriving its GJS
// ID, isolating its log output, running the function body through a
// middleware chain with a per-attempt timeout, retrying with backoff on
// failure, and notifying on terminal failure.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hollowcore/gjobq/backoff"
	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/function"
	"github.com/hollowcore/gjobq/identity"
	"github.com/hollowcore/gjobq/logscope"
	"github.com/hollowcore/gjobq/notify"
	"github.com/hollowcore/gjobq/progress"
)

// Emitter is the subset of *ext.Registry's lifecycle hooks Runner
// drives. Declared here, rather than Runner holding *ext.Registry
// directly, because ext imports runner (for *runner.Job) — *ext.Registry
// already implements this interface structurally, so gjobq.New passes
// one wherever an Emitter is expected without any adapter type.
type Emitter interface {
	EmitJobStarted(ctx context.Context, j *Job)
	EmitJobCompleted(ctx context.Context, j *Job, elapsed time.Duration)
	EmitJobFailed(ctx context.Context, j *Job, err error)
	EmitJobRetrying(ctx context.Context, j *Job, attempt int, delay time.Duration)
	EmitJobTimedOut(ctx context.Context, j *Job)
	EmitJobCancelled(ctx context.Context, j *Job)
}

// Handler is the terminal function a Chain eventually calls to execute
// one job attempt.
type Handler func(ctx context.Context) error

// Chain is the composed middleware pipeline an attempt runs through.
// Declared here, rather than Runner calling middleware.Chain directly,
// because middleware imports runner (for *Job) — runner cannot import
// middleware back without a cycle, the same reason Emitter exists above
// instead of Runner holding *ext.Registry directly. middleware.Middleware
// has the same shape but takes a middleware.Handler rather than a
// Handler, so a value built with middleware.Chain does not convert to
// Chain directly; gjobq.New wraps it in a closure that adapts next.
type Chain func(ctx context.Context, j *Job, next Handler) error

// ChainFactory builds the per-attempt Chain for a job, given the logger
// to bind it to (the job's own log scope, so attempt/retry/failure
// logging lands in the per-job log file, not just the process-wide
// logger) and the function's configured timeout.
type ChainFactory func(logger *slog.Logger, timeout time.Duration) Chain

// passthroughChain is the fallback used when a Runner is built without a
// ChainFactory: no recovery, tracing, metrics, or attempt logging, just
// the timeout enforcement Run's own retry/timeout classification
// depends on. Production wiring (gjobq.New) always supplies the real
// middleware-backed factory.
func passthroughChain(_ *slog.Logger, timeout time.Duration) Chain {
	return func(ctx context.Context, j *Job, next Handler) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return next(ctx)
	}
}

// noopEmitter is used when a Runner is built without an Emitter.
type noopEmitter struct{}

func (noopEmitter) EmitJobStarted(context.Context, *Job)                      {}
func (noopEmitter) EmitJobCompleted(context.Context, *Job, time.Duration)     {}
func (noopEmitter) EmitJobFailed(context.Context, *Job, error)                {}
func (noopEmitter) EmitJobRetrying(context.Context, *Job, int, time.Duration) {}
func (noopEmitter) EmitJobTimedOut(context.Context, *Job)                     {}
func (noopEmitter) EmitJobCancelled(context.Context, *Job)                    {}

// Runner drives a function's attempt sequence end to end.
type Runner struct {
	LogBaseDir string
	Notifier   notify.Notifier
	Emitter    Emitter
	Backoff    backoff.Strategy
	Logger     *slog.Logger
	NewChain   ChainFactory
}

// New builds a Runner. A nil notifier/emitter/backoff/logger falls back
// to a safe no-op default so a Runner is usable with zero configuration
// beyond a log directory. A nil chainFactory falls back to a minimal
// timeout-only chain with no recovery, tracing, metrics, or attempt
// logging; gjobq.New always supplies the real middleware-backed one.
func New(logBaseDir string, notifier notify.Notifier, emitter Emitter, strategy backoff.Strategy, logger *slog.Logger, chainFactory ChainFactory) *Runner {
	if notifier == nil {
		notifier = notify.New("", "", nil, notify.NoopMailer{})
	}
	if emitter == nil {
		emitter = noopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if chainFactory == nil {
		chainFactory = passthroughChain
	}
	return &Runner{LogBaseDir: logBaseDir, Notifier: notifier, Emitter: emitter, Backoff: strategy, Logger: logger, NewChain: chainFactory}
}

// Run executes desc against args until it succeeds or exhausts
// desc.Retries, returning the result wrapped as codec.Dict{"result": value}.
//
// handle is the queue handle the submission arrived under, or nil for a
// local run (RunLocally) — it seeds the GJS ID's prefix. reporter
// forwards progress updates to the queue when running under a worker,
// or nil for a no-op local run.
func (r *Runner) Run(ctx context.Context, desc *function.Descriptor, args codec.Dict, handle *identity.Handle, reporter progress.Reporter) (codec.Dict, error) {
	canonicalKey := identity.CanonicalKey(desc.Name, args)
	gjsID, err := identity.NewGJSID(canonicalKey, handle)
	if err != nil {
		return nil, fmt.Errorf("runner: derive GJS ID: %w", err)
	}

	scope, err := logscope.Acquire(r.LogBaseDir, desc.Name, gjsID)
	if err != nil {
		return nil, fmt.Errorf("runner: acquire log scope: %w", err)
	}
	defer scope.Close()

	var queueHandle string
	if handle != nil {
		queueHandle = handle.String()
	}

	j := &Job{
		GJSID:        gjsID,
		QueueHandle:  queueHandle,
		FunctionName: desc.Name,
		Args:         args,
		LogPath:      scope.Path(),
	}

	scopeLogger := slog.New(slog.NewTextHandler(scope, nil))
	chain := r.NewChain(scopeLogger, desc.Timeout)

	var (
		result   codec.Dict
		lastErr  error
		timedOut bool
	)

	for attempt := 0; attempt <= desc.Retries; attempt++ {
		j.Attempt = attempt
		j.State = StateRunning
		r.Emitter.EmitJobStarted(ctx, j)

		sink := progress.NewSink(reporter)
		start := time.Now()

		runErr := chain(ctx, j, func(attemptCtx context.Context) error {
			out, runErr := desc.Run(attemptCtx, args, sink)
			result = out
			return runErr
		})
		elapsed := time.Since(start)
		sink = nil

		timedOut = errors.Is(runErr, context.DeadlineExceeded)

		if runErr == nil {
			j.State = StateSucceeded
			r.Emitter.EmitJobCompleted(ctx, j, elapsed)
			if _, writeErr := scope.Write([]byte("Finished job\n")); writeErr != nil {
				r.Logger.Warn("runner: write completion banner", slog.String("error", writeErr.Error()))
			}
			lastErr = nil
			break
		}

		lastErr = runErr
		if timedOut {
			j.State = StateTimedOut
			r.Emitter.EmitJobTimedOut(ctx, j)
		}

		if attempt == desc.Retries {
			j.State = StateFailed
			break
		}

		delay := time.Duration(0)
		if r.Backoff != nil {
			delay = r.Backoff.Delay(attempt + 1)
		}
		r.Logger.Warn("retrying job attempt",
			slog.String("gjs_id", j.GJSID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", runErr.Error()),
		)
		r.Emitter.EmitJobRetrying(ctx, j, attempt+1, delay)
		if _, writeErr := scope.Write([]byte(fmt.Sprintf("Retrying (%d)...\n", attempt+1))); writeErr != nil {
			r.Logger.Warn("runner: write retry banner", slog.String("error", writeErr.Error()))
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				j.State = StateCancelled
				break
			}
		}
		if j.State == StateCancelled {
			break
		}
	}

	if lastErr != nil {
		if j.State == StateCancelled {
			r.Emitter.EmitJobCancelled(ctx, j)
			return codec.Dict{"result": nil}, lastErr
		}
		r.Emitter.EmitJobFailed(ctx, j, lastErr)
		if desc.NotifyOnFailure {
			lastErr = r.notifyFailure(ctx, j, lastErr)
		}
		return codec.Dict{"result": nil}, lastErr
	}

	return codec.Dict{"result": result}, nil
}

// notifyFailure assembles and sends the terminal-failure notification.
// A notifier error is appended to, never replaces, the original failure.
func (r *Runner) notifyFailure(ctx context.Context, j *Job, failErr error) error {
	host, hostErr := os.Hostname()
	if hostErr != nil {
		host = "unknown"
	}

	tail, tailErr := logscope.TailLines(j.LogPath, 50)
	if tailErr != nil {
		r.Logger.Warn("runner: read log tail for notification", slog.String("error", tailErr.Error()))
	}

	body := notify.FormatFailureBody(j.FunctionName, host, time.Now().Format(time.RFC3339), failErr.Error(), j.LogPath, tail)
	subject := fmt.Sprintf("Function %q failed", j.FunctionName)

	if notifyErr := r.Notifier.Notify(ctx, subject, body); notifyErr != nil {
		return fmt.Errorf("%w (notification also failed: %v)", failErr, notifyErr)
	}
	return failErr
}
