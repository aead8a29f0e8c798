// Package wsstore is the per-workspace embedded SQLite store (§4.2): the
// durable home for nodes, documents, CRDT states/updates, interactions,
// reactions, references, counters, file states, mutations, tombstones,
// and synchronizer cursors for exactly one workspace.
package wsstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/workspace-engine/core/internal/crdtdoc"
	"github.com/workspace-engine/core/internal/eventbus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaRegistry resolves the crdtdoc.Schema that a node's attributes (or
// a document's content) must validate against, keyed by NodeType / document
// type. Populated by the caller at startup from the engine's domain model.
type SchemaRegistry map[NodeType]crdtdoc.Schema

// Store is the workspace-scoped durable store described in §3 and §4.2.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	bus      *eventbus.Bus
	schemas  SchemaRegistry
	mentions MentionExtractor
}

// Open opens (creating if absent) the workspace database at dbPath,
// applies pending migrations, and returns a ready Store. Use ":memory:"
// for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger, bus *eventbus.Bus, schemas SchemaRegistry) (*Store, error) {
	logger.Info("opening workspace database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("wsstore: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("workspace database ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger, bus: bus, schemas: schemas}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_size_limit = 67108864",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("wsstore: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("wsstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("wsstore: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("wsstore: running migrations: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back otherwise. Store's multi-statement writes use this so each such
// call is one SQL transaction, per §5's suspension model; single-statement
// writes (cursors, counters, collaborations, file states, mutation
// completion) run directly on the database handle.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("wsstore: begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("wsstore: commit transaction: %w", err)
	}

	return nil
}
