package server

import (
	"context"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// Restart backoff: 1s, 2s, 4s, ... capped at 5m.
const (
	backoffBase = time.Second
	backoffMax  = 5 * time.Minute
)

// RunWithRecovery runs fn in a loop, recovering from panics with exponential backoff.
// It stops when ctx is cancelled.
func RunWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	runWithRecovery(ctx, logger, name, fn, backoffBase)
}

func runWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context), base time.Duration) {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			logger.Info("goroutine stopped", "name", name, "reason", "context cancelled")
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("goroutine panicked",
						"name", name,
						"panic", r,
						"stack", string(debug.Stack()),
						"attempt", attempt,
					)
				}
			}()
			fn(ctx)
		}()

		if ctx.Err() != nil {
			return
		}

		backoff := backoffFor(attempt, base)
		logger.Warn("goroutine restarting",
			"name", name,
			"attempt", attempt,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func backoffFor(attempt int, base time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffMax {
			return backoffMax
		}
	}
	return min(d, backoffMax)
}

// Every calls fn once per interval until ctx is cancelled. Errors are logged
// and the schedule continues. Pair it with RunWithRecovery for panics.
func Every(ctx context.Context, logger *slog.Logger, name string, interval time.Duration, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error("periodic task failed", "name", name, "err", err)
			}
		}
	}
}

// SetupLogger creates a structured slog.Logger with JSON output to w.
func SetupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
