package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AnalysisRun is a recorded loss analysis
type AnalysisRun struct {
	ID            int64
	FilePath      string
	FileHash      string // SHA256 of the log contents
	FileSize      int64
	TotalLines    int
	ExpectedTotal int
	SessionCount  int
	TotalLost     int
	Denominator   int
	AnomalyCount  int
	CreatedAt     time.Time
	Sessions      []SessionRow
}

// SessionRow is one session of a recorded analysis
type SessionRow struct {
	SessionID   string
	LineCount   int
	CheckedGaps bool
	Missing     string // Space separated, empty unless anomalous
	Lost        int
	Rate        float64
}

// SwarmRun is a recorded client swarm
type SwarmRun struct {
	ID          int64
	Host        string
	Port        string
	Command     string
	ClientCount int
	MaxDelay    time.Duration
	ExpectMode  bool
	CreatedAt   time.Time
	Clients     []ClientRow
}

// ClientRow is one client of a recorded swarm
type ClientRow struct {
	Index    int
	ExitCode int
	Elapsed  time.Duration
	Error    string
}

// InsertAnalysis stores an analysis and its sessions in one transaction
func (db *DB) InsertAnalysis(run *AnalysisRun) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.Exec(`
		INSERT INTO analysis_runs (
			file_path, file_hash, file_size, total_lines, expected_total,
			session_count, total_lost, denominator, anomaly_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.FilePath,
		run.FileHash,
		run.FileSize,
		run.TotalLines,
		run.ExpectedTotal,
		run.SessionCount,
		run.TotalLost,
		run.Denominator,
		run.AnomalyCount,
		formatTime(run.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for _, s := range run.Sessions {
		_, err := tx.Exec(`
			INSERT INTO session_results (
				run_id, session_id, line_count, checked_gaps, missing, lost, rate
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, s.SessionID, s.LineCount, s.CheckedGaps, s.Missing, s.Lost, s.Rate)
		if err != nil {
			return 0, fmt.Errorf("failed to insert session %s: %w", s.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	run.ID = runID
	return runID, nil
}

// InsertSwarm stores a swarm and its clients in one transaction
func (db *DB) InsertSwarm(run *SwarmRun) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.Exec(`
		INSERT INTO swarm_runs (
			host, port, command, clients, max_delay_ms, expect_mode, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.Host,
		run.Port,
		run.Command,
		run.ClientCount,
		run.MaxDelay.Milliseconds(),
		run.ExpectMode,
		formatTime(run.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert swarm: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for _, c := range run.Clients {
		_, err := tx.Exec(`
			INSERT INTO client_results (run_id, client_index, exit_code, elapsed_ms, error)
			VALUES (?, ?, ?, ?, ?)
		`, runID, c.Index, c.ExitCode, c.Elapsed.Milliseconds(), c.Error)
		if err != nil {
			return 0, fmt.Errorf("failed to insert client %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	run.ID = runID
	return runID, nil
}

// FindAnalysisByHash returns the most recent analysis of identical log
// contents, or nil if there is none
func (db *DB) FindAnalysisByHash(hash string) (*AnalysisRun, error) {
	row := db.conn.QueryRow(`
		SELECT id FROM analysis_runs
		WHERE file_hash = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, hash)

	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return db.GetAnalysis(id)
}

// GetAnalysis loads an analysis with its sessions
func (db *DB) GetAnalysis(id int64) (*AnalysisRun, error) {
	var run AnalysisRun
	var createdAt string
	err := db.conn.QueryRow(`
		SELECT id, file_path, file_hash, file_size, total_lines, expected_total,
			session_count, total_lost, denominator, anomaly_count, created_at
		FROM analysis_runs WHERE id = ?
	`, id).Scan(
		&run.ID, &run.FilePath, &run.FileHash, &run.FileSize, &run.TotalLines, &run.ExpectedTotal,
		&run.SessionCount, &run.TotalLost, &run.Denominator, &run.AnomalyCount, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %d: %w", id, err)
	}
	run.CreatedAt = parseTime(createdAt)

	rows, err := db.conn.Query(`
		SELECT session_id, line_count, checked_gaps, missing, lost, rate
		FROM session_results WHERE run_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var s SessionRow
		var missing sql.NullString
		if err := rows.Scan(&s.SessionID, &s.LineCount, &s.CheckedGaps, &missing, &s.Lost, &s.Rate); err != nil {
			return nil, err
		}
		s.Missing = missing.String
		run.Sessions = append(run.Sessions, s)
	}

	return &run, rows.Err()
}

// GetSwarm loads a swarm with its clients
func (db *DB) GetSwarm(id int64) (*SwarmRun, error) {
	var run SwarmRun
	var createdAt string
	var maxDelayMS int64
	err := db.conn.QueryRow(`
		SELECT id, host, port, command, clients, max_delay_ms, expect_mode, created_at
		FROM swarm_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Host, &run.Port, &run.Command, &run.ClientCount, &maxDelayMS, &run.ExpectMode, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load swarm %d: %w", id, err)
	}
	run.CreatedAt = parseTime(createdAt)
	run.MaxDelay = time.Duration(maxDelayMS) * time.Millisecond

	rows, err := db.conn.Query(`
		SELECT client_index, exit_code, elapsed_ms, error
		FROM client_results WHERE run_id = ? ORDER BY client_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var c ClientRow
		var elapsedMS int64
		var errText sql.NullString
		if err := rows.Scan(&c.Index, &c.ExitCode, &elapsedMS, &errText); err != nil {
			return nil, err
		}
		c.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		c.Error = errText.String
		run.Clients = append(run.Clients, c)
	}

	return &run, rows.Err()
}
