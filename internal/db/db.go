package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kiracore/leadcycle/internal/paths"
	_ "modernc.org/sqlite"
)

// DB is the local run history store
type DB struct {
	*sql.DB
	path string
}

// DefaultDBPath returns the default database path.
// Uses XDG_DATA_HOME/leadcycle/history.db or ~/.local/share/leadcycle/history.db
func DefaultDBPath() string {
	return paths.HistoryDBPath()
}

// Open opens or creates the database
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultDBPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Init initializes the database schema
func (db *DB) Init() error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == nil && version >= SchemaVersion {
		return nil // Already up to date
	}

	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec(Views); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}

	_, err = db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// Backup copies the database to the specified path
func (db *DB) Backup(destPath string) error {
	// Fold the WAL into the main file first
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}

	src, err := os.Open(db.path)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}

	return dst.Close()
}

// Stats returns database statistics
type Stats struct {
	Path          string    `json:"path"`
	Size          int64     `json:"size_bytes"`
	Runs          int       `json:"runs"`
	Completed     int       `json:"completed"`
	Failed        int       `json:"failed"`
	Projects      int       `json:"projects"`
	LastRun       time.Time `json:"last_run"`
	SchemaVersion int       `json:"schema_version"`
}

// GetStats returns database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{Path: db.path}

	info, err := os.Stat(db.path)
	if err == nil {
		stats.Size = info.Size()
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM report_runs").Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	db.QueryRow("SELECT COUNT(*) FROM report_runs WHERE status = ?", StatusCompleted).Scan(&stats.Completed)
	db.QueryRow("SELECT COUNT(*) FROM report_runs WHERE status = ?", StatusFailed).Scan(&stats.Failed)
	db.QueryRow("SELECT COUNT(DISTINCT project) FROM report_runs").Scan(&stats.Projects)
	db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion)

	var lastRun sql.NullString
	db.QueryRow("SELECT MAX(started_at) FROM report_runs").Scan(&lastRun)
	if lastRun.Valid && lastRun.String != "" {
		if t, err := parseTime(lastRun.String); err == nil {
			stats.LastRun = t
		}
	}

	return stats, nil
}

// ExportData is the JSON form of the run history
type ExportData struct {
	ExportedAt    time.Time `json:"exported_at"`
	SchemaVersion int       `json:"schema_version"`
	Runs          []Run     `json:"runs"`
}

// Export writes every run to w as JSON
func (db *DB) Export(w io.Writer) error {
	runs, err := db.ListRuns(RunFilter{})
	if err != nil {
		return err
	}

	data := ExportData{
		ExportedAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Runs:          runs,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
