// ABOUTME: SQLite implementation of the key→bytes engine using modernc.org/sqlite
// ABOUTME: One database file per namespace under the data directory

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// namespaceTable maps a namespace to its table name. Namespaces live in
// separate database files, but the table names differ too so a misrouted
// query fails loudly instead of reading the wrong keyspace.
var namespaceTable = map[Namespace]string{
	NamespaceUsers:  "user_records",
	NamespacePublic: "public_records",
}

// SQLiteEngine implements Engine with one SQLite database per namespace:
// <dataDir>/public.db and <dataDir>/users/index.db. WAL mode keeps single-key
// writes atomic and durable with respect to concurrent readers.
type SQLiteEngine struct {
	dbs    map[Namespace]*sql.DB
	logger *slog.Logger
}

// NewSQLiteEngine opens (creating if needed) the engine's databases under
// dataDir. Failure here is a construction-time fatal condition; callers are
// expected to abort startup rather than retry.
func NewSQLiteEngine(dataDir string) (*SQLiteEngine, error) {
	logger := slog.Default().With("component", "store")

	usersDir := filepath.Join(dataDir, "users")
	if err := os.MkdirAll(usersDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	paths := map[Namespace]string{
		NamespacePublic: filepath.Join(dataDir, "public.db"),
		NamespaceUsers:  filepath.Join(usersDir, "index.db"),
	}

	e := &SQLiteEngine{
		dbs:    make(map[Namespace]*sql.DB, len(paths)),
		logger: logger,
	}
	for ns, path := range paths {
		db, err := openDatabase(path, namespaceTable[ns])
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("opening %s namespace: %w", ns, err)
		}
		e.dbs[ns] = db
	}

	logger.Info("store engine initialized", "data_dir", dataDir)
	return e, nil
}

func openDatabase(path, table string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := createSchema(db, table); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := runMigrations(db, table); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// createSchema creates the namespace table if it doesn't exist.
func createSchema(db *sql.DB, table string) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			record     BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`, table)

	_, err := db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func runMigrations(db *sql.DB, table string) error {
	// Migration: early databases stored records without an updated_at column.
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first.
	var exists int
	err := db.QueryRow(
		`SELECT 1 FROM pragma_table_info(?) WHERE name = 'updated_at'`, table,
	).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking updated_at column: %w", err)
	}

	apply := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`, table)
	if _, err := db.Exec(apply); err != nil {
		return fmt.Errorf("adding updated_at column to %s: %w", table, err)
	}
	return nil
}

// Get returns the stored bytes for key, or ErrNotFound.
func (e *SQLiteEngine) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	db, table, err := e.namespace(ns)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT record FROM %s WHERE key = ?`, table)

	var data []byte
	err = db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s record: %w", ns, err)
	}
	return data, nil
}

// Insert overwrites the value for key, returning the previous bytes. The
// read of the prior value and the write happen in one transaction, so
// concurrent readers never observe a partial write.
func (e *SQLiteEngine) Insert(ctx context.Context, ns Namespace, key string, data []byte) ([]byte, error) {
	db, table, err := e.namespace(ns)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning %s insert: %w", ns, err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev []byte
	query := fmt.Sprintf(`SELECT record FROM %s WHERE key = ?`, table)
	if err := tx.QueryRowContext(ctx, query, key).Scan(&prev); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading previous %s record: %w", ns, err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (key, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at
	`, table)
	if _, err := tx.ExecContext(ctx, upsert, key, data, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("writing %s record: %w", ns, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing %s insert: %w", ns, err)
	}

	e.logger.Debug("inserted record", "namespace", ns, "key", key, "size", len(data))
	return prev, nil
}

// Keys lists all keys in the namespace in lexical order.
func (e *SQLiteEngine) Keys(ctx context.Context, ns Namespace) ([]string, error) {
	db, table, err := e.namespace(ns)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT key FROM %s ORDER BY key`, table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing %s keys: %w", ns, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning %s key: %w", ns, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s keys: %w", ns, err)
	}
	return keys, nil
}

// Close closes all namespace databases.
func (e *SQLiteEngine) Close() error {
	e.logger.Info("closing store engine")
	var firstErr error
	for _, db := range e.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *SQLiteEngine) namespace(ns Namespace) (*sql.DB, string, error) {
	db, ok := e.dbs[ns]
	if !ok {
		return nil, "", fmt.Errorf("unknown namespace %q", ns)
	}
	return db, namespaceTable[ns], nil
}

// Ensure SQLiteEngine implements Engine.
var _ Engine = (*SQLiteEngine)(nil)
