package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hollowcore/gjobq/runner"
)

// Logging returns middleware that logs job attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *runner.Job, next Handler) error {
		logger.Info("job attempt started",
			slog.String("function_name", j.FunctionName),
			slog.String("gjs_id", j.GJSID),
			slog.Int("attempt", j.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job attempt failed",
				slog.String("function_name", j.FunctionName),
				slog.String("gjs_id", j.GJSID),
				slog.Int("attempt", j.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job attempt completed",
				slog.String("function_name", j.FunctionName),
				slog.String("gjs_id", j.GJSID),
				slog.Int("attempt", j.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
