// Package store persists the mirrored fleet inventory in SQLite. It owns
// the schema (goose migrations), batched idempotent upserts, stale-entity
// reconciliation, sync run records, and compliance snapshots. The reporting
// layer reads these tables; only the sync engine writes them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

const (
	// busyTimeoutMS lets concurrent readers (the reporting layer) wait out
	// the engine's write transactions instead of failing immediately.
	busyTimeoutMS = 5000

	// upsertChunkSize bounds the rows per multi-row insert statement.
	upsertChunkSize = 100
)

// Store wraps the SQLite mirror database. Writes happen single-threaded
// from the orchestrator; WAL mode keeps concurrent readers unblocked.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the mirror database at dbPath, applies
// pragmas and pending migrations, and returns a ready Store. Use ":memory:"
// for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening mirror database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// Sole-writer: the orchestrator is the only writer, and a single
	// connection keeps ":memory:" databases coherent in tests.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("mirror database ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and concurrent-read safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// chunk calls fn with successive sub-slices of at most size elements.
func chunk[T any](items []T, size int, fn func([]T) error) error {
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		if err := fn(items[start:end]); err != nil {
			return err
		}
	}

	return nil
}
