package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/vwire-io/vwire-device/internal/gpio"
	"github.com/vwire-io/vwire-device/internal/infrastructure/config"
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// schema creates the store's tables on first open. Kept additive so old
// database files keep working across upgrades.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pins (
    name     TEXT PRIMARY KEY,
    mode     TEXT NOT NULL,
    interval INTEGER NOT NULL
);
`

// Store persists device state across restarts: provisioned settings and
// the last server-applied pin configuration. On boot the agent restores
// GPIO state from here before the broker is reachable.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the store, its directory, and its schema if needed.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Sets appropriate file permissions (0600)
//  5. Verifies the connection and applies the schema
//
// Parameters:
//   - cfg: Store configuration from config.yaml
//
// Returns:
//   - *Store: Ready to use
//   - error: If connection or schema setup fails
func Open(cfg config.StoreConfig) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// SQLite works best with a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:   sqlDB,
		path: cfg.Path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying store connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("applying store schema: %w", err)
	}

	// Set file permissions (owner read/write only)
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return s, nil
}

// Close closes the store gracefully.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the store is accessible and functioning.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// SetSetting stores a key/value setting, replacing any previous value.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - key: Setting name
//   - value: Setting value
//
// Returns:
//   - error: If the write fails
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("saving setting %q: %w", key, err)
	}
	return nil
}

// GetSetting retrieves a setting by key.
//
// Returns:
//   - string: Setting value
//   - error: ErrNotFound if the key does not exist
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: setting %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, nil
}

// DeleteSetting removes a setting. Deleting an absent key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ?`, key,
	); err != nil {
		return fmt.Errorf("deleting setting %q: %w", key, err)
	}
	return nil
}

// SavePinConfigs replaces the persisted pin configuration atomically.
// Called after every successful server configuration push so a restart
// restores the same pins.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - configs: Current pin table snapshot
//
// Returns:
//   - error: If the transaction fails
func (s *Store) SavePinConfigs(ctx context.Context, configs []gpio.PinConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting pin config transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM pins`); err != nil {
		return fmt.Errorf("clearing pin configs: %w", err)
	}

	for _, pc := range configs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pins (name, mode, interval) VALUES (?, ?, ?)`,
			pc.Pin, pc.Mode, pc.Interval,
		); err != nil {
			return fmt.Errorf("saving pin config %q: %w", pc.Pin, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pin configs: %w", err)
	}
	return nil
}

// LoadPinConfigs returns the persisted pin configuration, if any.
//
// Returns:
//   - []gpio.PinConfig: Saved pins, empty when none were persisted
//   - error: If the query fails
func (s *Store) LoadPinConfigs(ctx context.Context) ([]gpio.PinConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, mode, interval FROM pins ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading pin configs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []gpio.PinConfig
	for rows.Next() {
		var pc gpio.PinConfig
		if err := rows.Scan(&pc.Pin, &pc.Mode, &pc.Interval); err != nil {
			return nil, fmt.Errorf("scanning pin config: %w", err)
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pin configs: %w", err)
	}
	return out, nil
}
