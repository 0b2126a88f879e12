package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reportvoice/core"
)

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// DefaultSQLiteConfig returns default configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path: "./data/reports.db",
	}
}

// SQLiteStore is a ReportStore backed by SQLite, so sessions survive restarts
// and can be shared between CLI invocations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at cfg.Path.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg = DefaultSQLiteConfig()
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		dsn = cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		session_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_updated ON reports(updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or overwrites the report of report.SessionID. created_at is kept on overwrite.
func (s *SQLiteStore) Put(ctx context.Context, report *core.Report) error {
	if report == nil || report.SessionID == "" {
		return errors.New("store: session ID is required")
	}

	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (session_id, text, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			text = excluded.text,
			source_type = excluded.source_type,
			updated_at = excluded.updated_at
	`, report.SessionID, report.Text, report.SourceType, report.CreatedAt, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: put report: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT created_at FROM reports WHERE session_id = ?`, report.SessionID)
	if err := row.Scan(&report.CreatedAt); err != nil {
		return fmt.Errorf("store: read back report: %w", err)
	}
	return nil
}

// Get returns the report of sessionID.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*core.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, text, source_type, created_at, updated_at
		FROM reports WHERE session_id = ?
	`, sessionID)

	var r core.Report
	err := row.Scan(&r.SessionID, &r.Text, &r.SourceType, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("store: get report: %w", err)
	}
	return &r, nil
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: delete report: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
