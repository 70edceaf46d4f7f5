package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wmsender/internal/model"
)

// sqliteDocumentKey is the row holding the database document.
const sqliteDocumentKey = "webmention"

// SQLiteStore keeps the database document in SQLite and records every save
// in a runs table.
type SQLiteStore struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// SQLiteOptions configures SQLiteStore behavior.
type SQLiteOptions struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultSQLiteOptions returns the default SQLite options.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// RunRecord summarizes one saved database.
type RunRecord struct {
	// ID is the unique identifier of the run.
	ID int64 `json:"id"`

	// Timestamp is when the database was saved.
	Timestamp time.Time `json:"timestamp"`

	// Pages is the number of pages in the saved database.
	Pages int `json:"pages"`

	// Mentions is the number of mentions in the saved database.
	Mentions int `json:"mentions"`
}

// OpenSQLite opens or creates a SQLiteStore at dbPath.
func OpenSQLite(dbPath string, opts SQLiteOptions) (*SQLiteStore, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("%w: failed to check database path: %w", ErrUnavailable, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrUnavailable, err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrUnavailable, err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create tables: %w", ErrUnavailable, err)
	}

	return s, nil
}

// createTables creates the database schema if it doesn't exist.
func (s *SQLiteStore) createTables() error {
	schema := `
	-- The current database document
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One row per save
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		pages INTEGER NOT NULL,
		mentions INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Load reads the current document.
func (s *SQLiteStore) Load(ctx context.Context) (*model.Database, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM documents WHERE key = ?`, sqliteDocumentKey).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read document: %w", ErrUnavailable, err)
	}
	return Decode([]byte(document))
}

// Save upserts the document and appends a run record in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, db *model.Database) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	upsert := `
	INSERT INTO documents (key, document, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET
		document = excluded.document,
		updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, upsert, sqliteDocumentKey, string(data)); err != nil {
		return fmt.Errorf("%w: failed to save document: %w", ErrUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (pages, mentions) VALUES (?, ?)`,
		len(db.Pages), db.MentionCount(),
	); err != nil {
		return fmt.Errorf("%w: failed to record run: %w", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ErrUnavailable, err)
	}
	return nil
}

// History returns up to limit run records, newest first. A limit of zero
// or less returns every record.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, timestamp, pages, mentions FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var timestamp string
		if err := rows.Scan(&r.ID, &timestamp, &r.Pages, &r.Mentions); err != nil {
			return nil, fmt.Errorf("%w: failed to scan run: %w", ErrUnavailable, err)
		}
		r.Timestamp = parseTimestamp(timestamp)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Location returns the sqlite DSN of the store.
func (s *SQLiteStore) Location() string {
	return "sqlite://" + s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a SQLite timestamp, returning the zero time when no
// known format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
