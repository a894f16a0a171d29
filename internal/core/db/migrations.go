package db

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	// Migration 1: Add anomaly_count to analysis_runs
	if err := db.migration001AddAnomalyCount(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	return nil
}

// migration001AddAnomalyCount records how many sessions were excluded from
// the aggregate numerator. Databases created before it lack the column.
func (db *DB) migration001AddAnomalyCount() error {
	var hasColumn bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('analysis_runs')
		WHERE name='anomaly_count'
	`).Scan(&hasColumn)
	if err != nil {
		return err
	}

	if hasColumn {
		return nil
	}

	_, err = db.conn.Exec(`ALTER TABLE analysis_runs ADD COLUMN anomaly_count INTEGER NOT NULL DEFAULT 0`)
	return err
}
