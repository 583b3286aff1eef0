// ABOUTME: SQLite implementation of the Store interfaces using modernc.org/sqlite
// ABOUTME: Provides user/vault persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Wait for writer locks instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// modernc.org/sqlite allows one writer at a time; funneling all access
	// through a single pooled connection keeps concurrent claims serialized
	// in the driver instead of surfacing lock errors to callers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS vaults (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			name       TEXT NOT NULL,
			token      TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_vaults_user ON vaults(user_id);
		CREATE INDEX IF NOT EXISTS idx_vaults_token ON vaults(token);

		CREATE TABLE IF NOT EXISTS notes (
			id              TEXT PRIMARY KEY,
			vault_id        TEXT NOT NULL REFERENCES vaults(id) ON DELETE CASCADE,
			external_id     TEXT,
			title           TEXT,
			content         TEXT NOT NULL,
			state           TEXT NOT NULL DEFAULT 'PENDING',
			claim_owner     TEXT,
			claim_timestamp TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			CHECK (state IN ('PENDING', 'CLAIMED', 'DELIVERED'))
		);

		CREATE INDEX IF NOT EXISTS idx_notes_vault_state ON notes(vault_id, state, created_at);
		CREATE INDEX IF NOT EXISTS idx_notes_vault_created ON notes(vault_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateUser creates a new user account.
// Returns ErrUsernameExists or ErrEmailExists on a uniqueness conflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			if strings.Contains(err.Error(), "users.email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
// Returns ErrNotFound if no user has that username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}

// CreateVault creates a new vault for a user.
func (s *SQLiteStore) CreateVault(ctx context.Context, vault *Vault) error {
	query := `
		INSERT INTO vaults (id, user_id, name, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		vault.ID,
		vault.UserID,
		vault.Name,
		vault.Token,
		vault.CreatedAt.UTC().Format(time.RFC3339),
		vault.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting vault: %w", err)
	}

	s.logger.Debug("created vault", "id", vault.ID, "user_id", vault.UserID, "name", vault.Name)
	return nil
}

// GetVault retrieves a vault by ID regardless of owner.
// Returns ErrNotFound if the vault doesn't exist.
func (s *SQLiteStore) GetVault(ctx context.Context, id string) (*Vault, error) {
	query := `
		SELECT id, user_id, name, token, created_at, updated_at
		FROM vaults
		WHERE id = ?
	`
	return s.scanVault(s.db.QueryRowContext(ctx, query, id))
}

// GetUserVault retrieves a vault by ID, restricted to the owning user.
// Returns ErrNotFound if the vault doesn't exist or belongs to another user.
func (s *SQLiteStore) GetUserVault(ctx context.Context, id, userID string) (*Vault, error) {
	query := `
		SELECT id, user_id, name, token, created_at, updated_at
		FROM vaults
		WHERE id = ? AND user_id = ?
	`
	return s.scanVault(s.db.QueryRowContext(ctx, query, id, userID))
}

// GetVaultByToken retrieves a vault by its bearer token.
// This is the lookup behind vault-token authentication.
// Returns ErrNotFound if no vault has that token.
func (s *SQLiteStore) GetVaultByToken(ctx context.Context, token string) (*Vault, error) {
	query := `
		SELECT id, user_id, name, token, created_at, updated_at
		FROM vaults
		WHERE token = ?
	`
	return s.scanVault(s.db.QueryRowContext(ctx, query, token))
}

func (s *SQLiteStore) scanVault(row *sql.Row) (*Vault, error) {
	var vault Vault
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&vault.ID,
		&vault.UserID,
		&vault.Name,
		&vault.Token,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning vault: %w", err)
	}

	vault.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	vault.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &vault, nil
}

// ListVaultsByUser returns all vaults owned by a user, oldest first.
func (s *SQLiteStore) ListVaultsByUser(ctx context.Context, userID string) ([]*Vault, error) {
	query := `
		SELECT id, user_id, name, token, created_at, updated_at
		FROM vaults
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying vaults: %w", err)
	}
	defer rows.Close()

	var vaults []*Vault
	for rows.Next() {
		var v Vault
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Token, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning vault row: %w", err)
		}

		v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		v.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		vaults = append(vaults, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vault rows: %w", err)
	}
	return vaults, nil
}

// UpdateVaultName renames a vault, restricted to the owning user.
// Returns the updated vault, or ErrNotFound if the vault doesn't exist
// or belongs to another user.
func (s *SQLiteStore) UpdateVaultName(ctx context.Context, id, userID, name string) (*Vault, error) {
	query := `
		UPDATE vaults
		SET name = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		name,
		time.Now().UTC().Format(time.RFC3339),
		id,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating vault: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("renamed vault", "id", id, "name", name)
	return s.GetVault(ctx, id)
}

// DeleteVault removes a vault, restricted to the owning user.
// Returns ErrNotFound if the vault doesn't exist or belongs to another user.
func (s *SQLiteStore) DeleteVault(ctx context.Context, id, userID string) error {
	query := `DELETE FROM vaults WHERE id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("deleting vault: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted vault", "id", id)
	return nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
