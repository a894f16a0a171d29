package db

import (
	"database/sql"
	"time"
)

// Stats represents database statistics
type Stats struct {
	AnalysisRuns     int
	SessionsAnalyzed int
	AnomalySessions  int
	SwarmRuns        int
	ClientsLaunched  int
	FailedClients    int
	MeanClientTime   time.Duration
	OldestRun        time.Time
	NewestRun        time.Time
}

// GetStats returns comprehensive database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	// Analyses
	err := db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(session_count), 0), COALESCE(SUM(anomaly_count), 0)
		FROM analysis_runs
	`).Scan(&stats.AnalysisRuns, &stats.SessionsAnalyzed, &stats.AnomalySessions)
	if err != nil {
		return nil, err
	}

	// Swarms
	err = db.QueryRow("SELECT COUNT(*) FROM swarm_runs").Scan(&stats.SwarmRuns)
	if err != nil {
		return nil, err
	}

	// Clients
	var meanMS sql.NullFloat64
	err = db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN exit_code != 0 OR COALESCE(error, '') != '' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN exit_code >= 0 THEN elapsed_ms END)
		FROM client_results
	`).Scan(&stats.ClientsLaunched, &stats.FailedClients, &meanMS)
	if err != nil {
		return nil, err
	}
	if meanMS.Valid {
		stats.MeanClientTime = time.Duration(meanMS.Float64 * float64(time.Millisecond))
	}

	// Date range (only if we have runs)
	if stats.AnalysisRuns+stats.SwarmRuns > 0 {
		var oldest, newest sql.NullString
		err = db.QueryRow(`
			SELECT MIN(created_at), MAX(created_at) FROM (
				SELECT created_at FROM analysis_runs
				UNION ALL
				SELECT created_at FROM swarm_runs
			)
		`).Scan(&oldest, &newest)
		if err != nil {
			return nil, err
		}

		if oldest.Valid {
			stats.OldestRun = parseTime(oldest.String)
		}
		if newest.Valid {
			stats.NewestRun = parseTime(newest.String)
		}
	}

	return stats, nil
}
