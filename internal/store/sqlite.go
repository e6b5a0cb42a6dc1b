// ABOUTME: SQLite implementation of the AccountStore interface using modernc.org/sqlite
// ABOUTME: Mirrors registry accounts locally with automatic schema creation

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

// SQLiteStore implements the AccountStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
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

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			name TEXT PRIMARY KEY,
			added_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('accounts') WHERE name = 'source'`,
			apply:  `ALTER TABLE accounts ADD COLUMN source TEXT NOT NULL DEFAULT 'manual'`,
			column: "source",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking column %s: %w", m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding column %s: %w", m.column, err)
		}
		s.logger.Info("applied migration", "table", "accounts", "column", m.column)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// AddAccount records an account as existing.
// Returns ErrDuplicateAccount if it is already mirrored.
func (s *SQLiteStore) AddAccount(ctx context.Context, account *Account) error {
	name := normalizeName(account.Name)
	if name == "" {
		return ErrInvalidName
	}
	source := account.Source
	if source == "" {
		source = "manual"
	}
	addedAt := account.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	query := `
		INSERT INTO accounts (name, source, added_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, name, source, addedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Debug("added account", "name", name, "source", source)
	return nil
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

// GetAccount retrieves an account by name.
// Returns ErrNotFound if the account isn't mirrored.
func (s *SQLiteStore) GetAccount(ctx context.Context, name string) (*Account, error) {
	query := `
		SELECT name, source, added_at
		FROM accounts
		WHERE name = ?
	`

	var account Account
	var addedAtStr string

	err := s.db.QueryRowContext(ctx, query, normalizeName(name)).Scan(
		&account.Name,
		&account.Source,
		&addedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	account.AddedAt, err = time.Parse(time.RFC3339, addedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing added_at: %w", err)
	}

	return &account, nil
}

// RemoveAccount deletes an account.
// Returns ErrNotFound if the account isn't mirrored.
func (s *SQLiteStore) RemoveAccount(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, normalizeName(name))
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed account", "name", name)
	return nil
}

// ListAccounts returns every mirrored account ordered by name.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	query := `
		SELECT name, source, added_at
		FROM accounts
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var account Account
		var addedAtStr string

		if err := rows.Scan(&account.Name, &account.Source, &addedAtStr); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		account.AddedAt, err = time.Parse(time.RFC3339, addedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing added_at: %w", err)
		}

		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// Exists reports whether name is mirrored. It satisfies mention.Registry.
func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE name = ?`, normalizeName(name)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying account: %w", err)
	}
	return true, nil
}

// Ensure SQLiteStore implements AccountStore
var _ AccountStore = (*SQLiteStore)(nil)
