package engine

import (
	"context"
	"log/slog"
	"time"
)

// shutdownPoll is how often the idle daemon checks for cancellation.
const shutdownPoll = 500 * time.Millisecond

// RunLoop runs an immediate sync pass and then one pass per interval until
// ctx is canceled. Cancellation is coarse: it is honored between passes at
// shutdownPoll granularity, but a pass already in flight always reaches a
// terminal run status first: the pass runs on a context detached from the
// shutdown signal.
//
// A failed pass is logged and the loop continues; recovery is simply the
// next interval.
func RunLoop(ctx context.Context, eng *Engine, interval time.Duration, logger *slog.Logger) {
	runCtx := context.WithoutCancel(ctx)

	logger.Info("sync daemon started",
		slog.Duration("interval", interval),
	)

	runAndLog(runCtx, eng, logger)

	for {
		next := time.Now().Add(interval)

		logger.Info("next sync scheduled", slog.Time("at", next))

		if !sleepUntil(ctx, next) {
			logger.Info("sync daemon stopped")
			return
		}

		runAndLog(runCtx, eng, logger)
	}
}

// runAndLog executes one pass, absorbing its error into the log.
func runAndLog(ctx context.Context, eng *Engine, logger *slog.Logger) {
	if _, err := eng.RunOnce(ctx); err != nil {
		logger.Error("scheduled sync failed", slog.String("error", err.Error()))
	}
}

// sleepUntil waits for the deadline in short increments so shutdown latency
// stays sub-second while idle. Returns false when ctx was canceled first.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	timer := time.NewTimer(shutdownPoll)
	defer timer.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			timer.Reset(shutdownPoll)
		}
	}

	return true
}
