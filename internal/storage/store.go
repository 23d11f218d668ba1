package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lachiem1/driverlog/internal/auth"
)

type Driver string

const (
	DriverSQLite    Driver = "sqlite"
	DriverSQLCipher Driver = "sqlcipher"
	DriverPostgres  Driver = "postgres"
)

const schemaVersion = 3

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Config struct {
	Driver Driver
	Path   string
	DSN    string
}

// Store wraps the database handle together with the SQL dialect it speaks.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New wraps an already opened handle. Call Migrate before use.
func New(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		db, err = openSQLite(cfg.Path)
	case DriverSQLCipher:
		db, err = openEncrypted(cfg.Path)
	case DriverPostgres:
		db, err = openPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	store := New(db, driver)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openEncrypted(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if !secureSQLiteSupported() {
		return nil, fmt.Errorf(
			"sqlcipher driver requires a sqlcipher-enabled build; rebuild with '-tags sqlcipher'",
		)
	}

	key, created, err := ensureDBKey()
	if err != nil {
		return nil, fmt.Errorf("ensure secure db key: %w", err)
	}
	if created {
		// A fresh key cannot decrypt an old file.
		if err := resetLocalDBFiles(path); err != nil {
			return nil, fmt.Errorf("reset db after key creation: %w", err)
		}
	}
	return openSecureSQLite(path, key)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Wipe removes local database files for a file-backed config.
func Wipe(cfg Config) (bool, error) {
	if cfg.Driver == DriverPostgres {
		return false, errors.New("wipe is only supported for file-backed databases")
	}
	existed, err := hasLocalDBFiles(cfg.Path)
	if err != nil {
		return false, err
	}
	if err := resetLocalDBFiles(cfg.Path); err != nil {
		return false, fmt.Errorf("wipe local db files: %w", err)
	}
	return existed, nil
}

// ConfigFromEnv resolves the database location.
func ConfigFromEnv() (Config, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(os.Getenv("DRIVERLOG_DB_DRIVER"))))
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite, DriverSQLCipher:
	case DriverPostgres:
		dsn := strings.TrimSpace(os.Getenv("DRIVERLOG_DB_DSN"))
		if dsn == "" {
			return Config{}, errors.New("DRIVERLOG_DB_DSN is required for the postgres driver")
		}
		return Config{Driver: driver, DSN: dsn}, nil
	default:
		return Config{}, fmt.Errorf("unsupported DRIVERLOG_DB_DRIVER %q", driver)
	}

	if dbPath := strings.TrimSpace(os.Getenv("DRIVERLOG_DB_PATH")); dbPath != "" {
		return Config{Driver: driver, Path: dbPath}, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve user config directory: %w", err)
	}
	return Config{
		Driver: driver,
		Path:   filepath.Join(configDir, "driverlog", "driverlog.db"),
	}, nil
}

func ensureDBKey() (key string, created bool, err error) {
	key, err = auth.LoadDBKey()
	if err == nil && strings.TrimSpace(key) != "" {
		return key, false, nil
	}

	newKey, err := generateRandomKey()
	if err != nil {
		return "", false, err
	}

	if err := auth.SaveDBKey(newKey); err != nil {
		return "", false, err
	}
	return newKey, true, nil
}

func generateRandomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// Migrate brings the schema up to schemaVersion.
func (s *Store) Migrate(ctx context.Context) error {
	const bootstrapSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  version INTEGER NOT NULL
);

INSERT INTO schema_migrations (id, version) VALUES (1, 1) ON CONFLICT (id) DO NOTHING;
`
	if _, err := s.db.ExecContext(ctx, bootstrapSchema); err != nil {
		return fmt.Errorf("run schema bootstrap: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE id = 1").Scan(&currentVersion); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, schemaVersion)
	}
	if currentVersion < 2 {
		if err := s.applyMigration(ctx, 2, v2Schema); err != nil {
			return err
		}
		currentVersion = 2
	}
	if currentVersion < 3 {
		if err := s.applyMigration(ctx, 3, v3Schema); err != nil {
			return err
		}
	}
	return nil
}

const v2Schema = `
CREATE TABLE IF NOT EXISTS sync_state (
  collection TEXT PRIMARY KEY,
  last_success_at TEXT,
  last_attempt_at TEXT,
  last_error TEXT
);

CREATE TABLE IF NOT EXISTS app_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drivers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  mobile TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS days (
  driver_id TEXT NOT NULL,
  day_id TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('OPEN','CLOSED')),
  opened_at TEXT,
  closed_at TEXT,
  PRIMARY KEY (driver_id, day_id)
);

CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  driver_id TEXT NOT NULL,
  client_name TEXT NOT NULL,
  client_name_norm TEXT NOT NULL,
  amount_value TEXT NOT NULL,
  kind TEXT NOT NULL CHECK (kind IN ('INCOME','EXPENSE')),
  occurred_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0,1))
);
`

const v3Schema = `
CREATE INDEX IF NOT EXISTS idx_transactions_driver_occurred ON transactions(driver_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_transactions_client_name_norm ON transactions(client_name_norm);
CREATE UNIQUE INDEX IF NOT EXISTS idx_days_single_open ON days(driver_id) WHERE status = 'OPEN';
`

func (s *Store) applyMigration(ctx context.Context, version int, schema string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration v%d transaction: %w", version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run v%d migrations: %w", version, err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind("UPDATE schema_migrations SET version = ? WHERE id = 1"), version); err != nil {
		return fmt.Errorf("update schema version to %d: %w", version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit v%d migrations: %w", version, err)
	}
	return nil
}

func hasLocalDBFiles(path string) (bool, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); err == nil {
			return true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	return false, nil
}

func resetLocalDBFiles(path string) error {
	paths := []string{
		path,
		path + "-wal",
		path + "-shm",
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
