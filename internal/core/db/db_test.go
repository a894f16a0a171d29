package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestNew(t *testing.T) {
	database := newTestDB(t)

	// Verify schema initialized
	var count int
	err := database.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}

	// analysis_runs, session_results, swarm_runs, client_results (+ sqlite_sequence)
	if count < 4 {
		t.Errorf("Expected at least 4 tables, got %d", count)
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	database, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = database.Close() }()

	if database.Path() != path {
		t.Errorf("Path() = %s, want %s", database.Path(), path)
	}
}

func TestNew_WALMode(t *testing.T) {
	database := newTestDB(t)

	// Verify WAL mode is enabled
	var journalMode string
	err := database.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestNew_ForeignKeys(t *testing.T) {
	database := newTestDB(t)

	// Verify foreign keys are enabled
	var fkEnabled int
	err := database.conn.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		t.Fatalf("Failed to query foreign keys: %v", err)
	}

	if fkEnabled != 1 {
		t.Errorf("Expected foreign keys enabled (1), got %d", fkEnabled)
	}
}

func TestMigration_AddsAnomalyCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// Simulate a database created before anomaly_count existed
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`
		CREATE TABLE analysis_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			file_size INTEGER,
			total_lines INTEGER,
			expected_total INTEGER NOT NULL,
			session_count INTEGER NOT NULL,
			total_lost INTEGER NOT NULL,
			denominator INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		INSERT INTO analysis_runs (file_path, file_hash, expected_total, session_count, total_lost, denominator, created_at)
		VALUES ('old.log', 'abc', 10, 1, 0, 10, '2024-01-01T00:00:00.000000000Z');
	`)
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.Close()

	database, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = database.Close() }()

	var anomalies int
	err = database.QueryRow("SELECT anomaly_count FROM analysis_runs WHERE file_path = 'old.log'").Scan(&anomalies)
	if err != nil {
		t.Fatalf("anomaly_count column missing after migration: %v", err)
	}
	if anomalies != 0 {
		t.Errorf("anomaly_count = %d, want default 0", anomalies)
	}

	// Running migrations twice is a no-op
	if err := database.runMigrations(); err != nil {
		t.Errorf("second runMigrations() error = %v", err)
	}
}
