package db

import (
	"strings"
	"time"
)

const (
	KindLoss  = "loss"
	KindSwarm = "swarm"
)

// RunFilter narrows ListRuns
type RunFilter struct {
	Kind  string    // KindLoss, KindSwarm or empty for both
	Since time.Time // Zero means no lower bound
	Limit int       // Zero means no limit
}

// RunSummary is one line of run history
type RunSummary struct {
	Kind        string
	ID          int64
	CreatedAt   time.Time
	Label       string // Log path or host:port
	Count       int    // Sessions or clients
	TotalLost   int
	Denominator int
	Problems    int // Anomalous sessions or failed clients
}

// ListRuns returns recorded runs, newest first
func (db *DB) ListRuns(filter RunFilter) ([]RunSummary, error) {
	since := ""
	if !filter.Since.IsZero() {
		since = formatTime(filter.Since)
	}

	var parts []string
	var args []interface{}

	if filter.Kind == "" || filter.Kind == KindLoss {
		parts = append(parts, `
			SELECT 'loss' AS kind, id, created_at, file_path AS label,
				session_count AS count, total_lost, denominator, anomaly_count AS problems
			FROM analysis_runs WHERE created_at >= ?`)
		args = append(args, since)
	}
	if filter.Kind == "" || filter.Kind == KindSwarm {
		parts = append(parts, `
			SELECT 'swarm' AS kind, s.id, s.created_at, s.host || ':' || s.port AS label,
				s.clients AS count, 0, 0,
				(SELECT COUNT(*) FROM client_results c
					WHERE c.run_id = s.id AND (c.exit_code != 0 OR COALESCE(c.error, '') != '')) AS problems
			FROM swarm_runs s WHERE s.created_at >= ?`)
		args = append(args, since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit)

	query := strings.Join(parts, "\nUNION ALL\n") + "\nORDER BY created_at DESC LIMIT ?"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdAt string
		if err := rows.Scan(&r.Kind, &r.ID, &createdAt, &r.Label, &r.Count, &r.TotalLost, &r.Denominator, &r.Problems); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
