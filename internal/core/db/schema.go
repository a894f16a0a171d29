package db

func (db *DB) initSchema() error {
	schema := `
	-- One row per analyzed capture log
	CREATE TABLE IF NOT EXISTS analysis_runs (
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

	CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_file_hash ON analysis_runs(file_hash);

	-- Per-session outcome of an analysis
	CREATE TABLE IF NOT EXISTS session_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		line_count INTEGER NOT NULL,
		checked_gaps BOOLEAN NOT NULL,
		missing TEXT,
		lost INTEGER NOT NULL,
		rate REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_results_run_id ON session_results(run_id);

	-- One row per client swarm
	CREATE TABLE IF NOT EXISTS swarm_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		port TEXT NOT NULL,
		command TEXT NOT NULL,
		clients INTEGER NOT NULL,
		max_delay_ms INTEGER NOT NULL,
		expect_mode BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_swarm_runs_created_at ON swarm_runs(created_at);

	-- Per-client outcome of a swarm
	CREATE TABLE IF NOT EXISTS client_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		client_index INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES swarm_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_client_results_run_id ON client_results(run_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}
