package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hollowcore/gjobq/runner"
)

// Timeout returns middleware that enforces a per-attempt execution
// deadline. d comes from the function's Descriptor, not from the job
// itself — a job attempt has no timeout of its own. A zero d disables
// the deadline and the handler runs under the caller's context as-is.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	return func(ctx context.Context, j *runner.Job, next Handler) error {
		if d > 0 {
			logger.Debug("attempt timeout set",
				slog.String("gjs_id", j.GJSID),
				slog.Duration("timeout", d),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
