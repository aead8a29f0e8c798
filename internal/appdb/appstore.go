// Package appdb implements the App DB and Account DB tiers of §3's
// three-tier storage model: one App DB per client install (known servers,
// accounts, tokens pending invalidation, app-level metadata) and one Account
// DB per logged-in account (the workspaces that account can access, plus
// account-level metadata). Both stores follow the same embedded-SQLite,
// goose-migrated, prepared-query shape as internal/wsstore, scaled down to
// the much smaller schemas these tiers own.
package appdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations_app/*.sql
var appMigrationsFS embed.FS

// Server is one known sync server, keyed by domain (§3 "unique by domain").
type Server struct {
	Domain     string
	Name       string
	Avatar     string
	Attributes string // JSON: {sha, pathPrefix, insecure, authConfig}
	Version    string
	CreatedAt  string
	SyncedAt   string
}

// Account is one logged-in account's credentials and profile.
type Account struct {
	ID        string
	Server    string
	Name      string
	Avatar    string
	Email     string
	Token     string
	DeviceID  string
	CreatedAt string
	UpdatedAt string
	SyncedAt  string
}

// DeletedToken is a token displaced by logout, staged until the server
// confirms invalidation (§3 Account, §5 Cleanup).
type DeletedToken struct {
	ID          string
	AccountID   string
	Server      string
	Token       string
	CreatedAt   string
	Attempts    int
	LastTriedAt string
}

// AppStore is the single-per-install App DB.
type AppStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenApp opens (creating if absent) the app database at dbPath and applies
// pending migrations. Use ":memory:" for tests.
func OpenApp(ctx context.Context, dbPath string, logger *slog.Logger) (*AppStore, error) {
	logger.Info("opening app database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("appdb: open app sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, appMigrationsFS, "migrations_app"); err != nil {
		db.Close()
		return nil, err
	}

	return &AppStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *AppStore) Close() error { return s.db.Close() }

// UpsertServer inserts or updates a known server by domain.
func (s *AppStore) UpsertServer(ctx context.Context, sv Server) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servers(domain, name, avatar, attributes, version, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			name = excluded.name, avatar = excluded.avatar, attributes = excluded.attributes,
			version = excluded.version, synced_at = excluded.synced_at`,
		sv.Domain, sv.Name, sv.Avatar, sv.Attributes, sv.Version, sv.CreatedAt, sv.SyncedAt)
	if err != nil {
		return fmt.Errorf("appdb: upsert server: %w", err)
	}

	return nil
}

// FetchServer returns the known server by domain, or ErrNotFound.
func (s *AppStore) FetchServer(ctx context.Context, domain string) (Server, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, name, avatar, attributes, version, created_at, synced_at
		FROM servers WHERE domain = ?`, domain)

	var sv Server
	var avatar, syncedAt sql.NullString
	if err := row.Scan(&sv.Domain, &sv.Name, &avatar, &sv.Attributes, &sv.Version, &sv.CreatedAt, &syncedAt); err != nil {
		if err == sql.ErrNoRows {
			return Server{}, ErrNotFound
		}
		return Server{}, fmt.Errorf("appdb: scan server: %w", err)
	}
	sv.Avatar, sv.SyncedAt = avatar.String, syncedAt.String

	return sv, nil
}

// RemoveServer deletes a server, cascading to its accounts.
func (s *AppStore) RemoveServer(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE domain = ?`, domain)
	if err != nil {
		return fmt.Errorf("appdb: remove server: %w", err)
	}

	return nil
}

// ListServers returns every known server.
func (s *AppStore) ListServers(ctx context.Context) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, name, avatar, attributes, version, created_at, synced_at FROM servers ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("appdb: list servers: %w", err)
	}
	defer rows.Close()

	var out []Server
	for rows.Next() {
		var sv Server
		var avatar, syncedAt sql.NullString
		if err := rows.Scan(&sv.Domain, &sv.Name, &avatar, &sv.Attributes, &sv.Version, &sv.CreatedAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("appdb: scan server row: %w", err)
		}
		sv.Avatar, sv.SyncedAt = avatar.String, syncedAt.String
		out = append(out, sv)
	}

	return out, rows.Err()
}

// UpsertAccount inserts or updates an account by id.
func (s *AppStore) UpsertAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts(id, server, name, avatar, email, token, device_id, created_at, updated_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, avatar = excluded.avatar, email = excluded.email,
			token = excluded.token, updated_at = excluded.updated_at, synced_at = excluded.synced_at`,
		a.ID, a.Server, a.Name, a.Avatar, a.Email, a.Token, a.DeviceID, a.CreatedAt, a.UpdatedAt, a.SyncedAt)
	if err != nil {
		return fmt.Errorf("appdb: upsert account: %w", err)
	}

	return nil
}

// FetchAccount returns an account by id, or ErrNotFound.
func (s *AppStore) FetchAccount(ctx context.Context, id string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, server, name, avatar, email, token, device_id, created_at, updated_at, synced_at
		FROM accounts WHERE id = ?`, id)

	var a Account
	var avatar, syncedAt sql.NullString
	err := row.Scan(&a.ID, &a.Server, &a.Name, &avatar, &a.Email, &a.Token, &a.DeviceID, &a.CreatedAt, &a.UpdatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("appdb: scan account: %w", err)
	}
	a.Avatar, a.SyncedAt = avatar.String, syncedAt.String

	return a, nil
}

// UpdateAccountToken persists a refreshed bearer token for an account,
// called by internal/accountauth after each silent OAuth2 refresh.
func (s *AppStore) UpdateAccountToken(ctx context.Context, accountID, token, now string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET token = ?, updated_at = ? WHERE id = ?`,
		token, now, accountID)
	if err != nil {
		return fmt.Errorf("appdb: update account token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appdb: update account token rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// ListAccounts returns every account known to this install, optionally
// scoped to one server domain (pass "" for all).
func (s *AppStore) ListAccounts(ctx context.Context, server string) ([]Account, error) {
	query := `SELECT id, server, name, avatar, email, token, device_id, created_at, updated_at, synced_at FROM accounts`
	args := []any{}
	if server != "" {
		query += ` WHERE server = ?`
		args = append(args, server)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appdb: list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		var avatar, syncedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.Server, &a.Name, &avatar, &a.Email, &a.Token, &a.DeviceID, &a.CreatedAt, &a.UpdatedAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("appdb: scan account row: %w", err)
		}
		a.Avatar, a.SyncedAt = avatar.String, syncedAt.String
		out = append(out, a)
	}

	return out, rows.Err()
}

// LogoutAccount removes the account and stages its current token in
// deleted_tokens for the cleanup task to invalidate server-side (§3 Account,
// §5 Cleanup).
func (s *AppStore) LogoutAccount(ctx context.Context, accountID string, now string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("appdb: begin logout tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT server, token FROM accounts WHERE id = ?`, accountID)

	var server, token string
	if err := row.Scan(&server, &token); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("appdb: scan account for logout: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deleted_tokens(id, account_id, server, token, created_at) VALUES (?, ?, ?, ?, ?)`,
		"dtk_"+accountID, accountID, server, token, now); err != nil {
		return fmt.Errorf("appdb: stage deleted token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID); err != nil {
		return fmt.Errorf("appdb: delete account: %w", err)
	}

	return tx.Commit()
}

// PendingDeletedTokens returns every deleted_tokens row not yet confirmed
// invalidated, for the cleanup task to retry.
func (s *AppStore) PendingDeletedTokens(ctx context.Context) ([]DeletedToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, server, token, created_at, attempts, last_tried_at FROM deleted_tokens`)
	if err != nil {
		return nil, fmt.Errorf("appdb: list deleted tokens: %w", err)
	}
	defer rows.Close()

	var out []DeletedToken
	for rows.Next() {
		var d DeletedToken
		var lastTried sql.NullString
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Server, &d.Token, &d.CreatedAt, &d.Attempts, &lastTried); err != nil {
			return nil, fmt.Errorf("appdb: scan deleted token row: %w", err)
		}
		d.LastTriedAt = lastTried.String
		out = append(out, d)
	}

	return out, rows.Err()
}

// MarkTokenInvalidationAttempt bumps a deleted_tokens row's retry counter.
func (s *AppStore) MarkTokenInvalidationAttempt(ctx context.Context, id string, now string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deleted_tokens SET attempts = attempts + 1, last_tried_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("appdb: mark token invalidation attempt: %w", err)
	}

	return nil
}

// ConfirmTokenInvalidated removes a deleted_tokens row once the server has
// confirmed the token is invalid.
func (s *AppStore) ConfirmTokenInvalidated(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM deleted_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("appdb: confirm token invalidated: %w", err)
	}

	return nil
}

// SetMetadata upserts an app-level key-value pair.
func (s *AppStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_metadata(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("appdb: set metadata: %w", err)
	}

	return nil
}

// FetchMetadata returns an app-level value by key, or ErrNotFound.
func (s *AppStore) FetchMetadata(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM app_metadata WHERE key = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("appdb: scan metadata: %w", err)
	}

	return value, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("appdb: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, migrationsFS embed.FS, dir string) error {
	subFS, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("appdb: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("appdb: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("appdb: running migrations: %w", err)
	}

	return nil
}
