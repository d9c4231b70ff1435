package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/poebridge/pkg/config"
)

// SchemaVersion is the current files database schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	purpose     TEXT NOT NULL,
	mime_type   TEXT NOT NULL,
	bytes       INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	data        BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// SQLiteStore keeps files in a SQLite database. The driver is either
// "sqlite" (modernc.org/sqlite, pure Go) or "sqlite3" (mattn/go-sqlite3).
type SQLiteStore struct {
	db     *sql.DB
	config config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(cfg config.SQLiteConfig) (*SQLiteStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "files.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite file store initialized",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, f *File) error {
	data := f.Data
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files (id, filename, purpose, mime_type, bytes, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Filename, f.Purpose, f.MimeType, f.Bytes, f.CreatedAt.Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("failed to store file %s: %w", f.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*File, error) {
	var (
		f       File
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, purpose, mime_type, bytes, created_at, data
		FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Filename, &f.Purpose, &f.MimeType, &f.Bytes, &created, &f.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", id, err)
	}
	f.CreatedAt = time.Unix(created, 0)
	return &f, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, purpose, mime_type, bytes, created_at
		FROM files ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		var (
			f       File
			created int64
		)
		if err := rows.Scan(&f.ID, &f.Filename, &f.Purpose, &f.MimeType, &f.Bytes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		f.CreatedAt = time.Unix(created, 0)
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (int, int64, error) {
	var (
		count int
		total sql.NullInt64
	)
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(bytes) FROM files").Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to read file stats: %w", err)
	}
	return count, total.Int64, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("SQLite file store closed")
	return nil
}
