package appdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

//go:embed migrations_account/*.sql
var accountMigrationsFS embed.FS

// Workspace is one workspace an account belongs to, per §3's Workspace
// entity.
type Workspace struct {
	ID           string
	AccountID    string
	UserID       string
	Role         string
	Name         string
	Description  string
	Avatar       string
	StorageLimit int64
	MaxFileSize  int64
	CreatedAt    string
	UpdatedAt    string
	SyncedAt     string
}

// AccountStore is the per-logged-in-account DB: the workspaces that account
// can access, plus account-level metadata.
type AccountStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenAccount opens (creating if absent) the account database at dbPath,
// one per logged-in account, and applies pending migrations.
func OpenAccount(ctx context.Context, dbPath string, logger *slog.Logger) (*AccountStore, error) {
	logger.Info("opening account database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("appdb: open account sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, accountMigrationsFS, "migrations_account"); err != nil {
		db.Close()
		return nil, err
	}

	return &AccountStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *AccountStore) Close() error { return s.db.Close() }

// UpsertWorkspace inserts or updates a workspace by id.
func (s *AccountStore) UpsertWorkspace(ctx context.Context, w Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces(id, account_id, user_id, role, name, description, avatar,
			storage_limit, max_file_size, created_at, updated_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role, name = excluded.name, description = excluded.description,
			avatar = excluded.avatar, storage_limit = excluded.storage_limit,
			max_file_size = excluded.max_file_size, updated_at = excluded.updated_at,
			synced_at = excluded.synced_at`,
		w.ID, w.AccountID, w.UserID, w.Role, w.Name, w.Description, w.Avatar,
		w.StorageLimit, w.MaxFileSize, w.CreatedAt, w.UpdatedAt, w.SyncedAt)
	if err != nil {
		return fmt.Errorf("appdb: upsert workspace: %w", err)
	}

	return nil
}

// FetchWorkspace returns a workspace by id, or ErrNotFound.
func (s *AccountStore) FetchWorkspace(ctx context.Context, id string) (Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, role, name, description, avatar,
			storage_limit, max_file_size, created_at, updated_at, synced_at
		FROM workspaces WHERE id = ?`, id)

	return scanWorkspace(row)
}

// ListWorkspaces returns every workspace this account belongs to.
func (s *AccountStore) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, user_id, role, name, description, avatar,
			storage_limit, max_file_size, created_at, updated_at, synced_at
		FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("appdb: list workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}

	return out, rows.Err()
}

// RemoveWorkspace deletes a workspace this account no longer belongs to.
func (s *AccountStore) RemoveWorkspace(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("appdb: remove workspace: %w", err)
	}

	return nil
}

// SetMetadata upserts an account-level key-value pair.
func (s *AccountStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_metadata(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("appdb: set account metadata: %w", err)
	}

	return nil
}

// FetchMetadata returns an account-level value by key, or ErrNotFound.
func (s *AccountStore) FetchMetadata(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM account_metadata WHERE key = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("appdb: scan account metadata: %w", err)
	}

	return value, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (Workspace, error) {
	var w Workspace
	var description, avatar, syncedAt sql.NullString

	err := row.Scan(&w.ID, &w.AccountID, &w.UserID, &w.Role, &w.Name, &description, &avatar,
		&w.StorageLimit, &w.MaxFileSize, &w.CreatedAt, &w.UpdatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return Workspace{}, ErrNotFound
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("appdb: scan workspace: %w", err)
	}
	w.Description, w.Avatar, w.SyncedAt = description.String, avatar.String, syncedAt.String

	return w, nil
}
