package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds the fetch pool when no width is configured. The
// Fleet API is rate-limited; ten concurrent detail fetches is the widest
// the upstream tolerates comfortably.
const defaultWorkers = 10

// FetchStats counts the outcome of one concurrent fetch batch. Failed is
// reported, not just logged, so operators can tell "nothing changed" apart
// from "fetches failed silently".
type FetchStats struct {
	Units  int
	Failed int
}

// fetchAll runs fn for every item through a bounded worker pool and
// collects the produced rows through a mutex-serialized sink. Units are
// independent and may complete in any order; a failing unit is logged,
// counted, and contributes nothing; it never aborts the batch. The pool is
// fully drained before fetchAll returns, so callers always write
// single-threaded afterwards.
func fetchAll[T, R any](
	ctx context.Context,
	workers int,
	items []T,
	name string,
	logger *slog.Logger,
	fn func(context.Context, T) ([]R, error),
) ([]R, FetchStats) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	stats := FetchStats{Units: len(items)}

	var (
		mu        sync.Mutex
		collected []R
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		item := items[i]

		g.Go(func() error {
			rows, err := fn(gctx, item)
			if err != nil {
				logger.Warn("fetch unit failed",
					slog.String("batch", name),
					slog.String("error", err.Error()),
				)

				mu.Lock()
				failed++
				mu.Unlock()

				return nil // best-effort: one bad unit never blocks the batch
			}

			mu.Lock()
			collected = append(collected, rows...)
			mu.Unlock()

			return nil
		})
	}

	// Units always return nil; Wait only drains the pool.
	_ = g.Wait()

	stats.Failed = failed

	logger.Debug("fetch batch drained",
		slog.String("batch", name),
		slog.Int("units", stats.Units),
		slog.Int("failed", stats.Failed),
		slog.Int("rows", len(collected)),
	)

	return collected, stats
}
