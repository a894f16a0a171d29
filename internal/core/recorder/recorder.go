package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/neilberkman/p0pkit/internal/core/lossrate"
	"github.com/neilberkman/p0pkit/internal/core/swarm"
)

// Recorder stores analyses and swarms in the history database
type Recorder struct {
	db *db.DB
}

// New creates a new recorder
func New(database *db.DB) *Recorder {
	return &Recorder{db: database}
}

// RecordAnalysis stores a loss report. If the same log contents were analyzed
// before, the earlier run is returned alongside the new one.
func (r *Recorder) RecordAnalysis(report *lossrate.Report, fileSize int64) (run *db.AnalysisRun, previous *db.AnalysisRun, err error) {
	hash, err := computeFileHash(report.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash file: %w", err)
	}

	previous, err = r.db.FindAnalysisByHash(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check history: %w", err)
	}

	run = &db.AnalysisRun{
		FilePath:      report.Path,
		FileHash:      hash,
		FileSize:      fileSize,
		TotalLines:    report.TotalLines,
		ExpectedTotal: report.ExpectedTotal,
		SessionCount:  len(report.Sessions),
		TotalLost:     report.TotalLost,
		Denominator:   report.Denominator,
		AnomalyCount:  report.AnomalyCount(),
		CreatedAt:     time.Now(),
	}

	for _, s := range report.Sessions {
		run.Sessions = append(run.Sessions, db.SessionRow{
			SessionID:   s.SessionID,
			LineCount:   s.Lines,
			CheckedGaps: s.CheckedGaps,
			Missing:     joinInts(s.Missing),
			Lost:        s.Lost,
			Rate:        s.Rate,
		})
	}

	if _, err := r.db.InsertAnalysis(run); err != nil {
		return nil, nil, err
	}

	return run, previous, nil
}

// RecordSwarm stores the outcome of a client swarm
func (r *Recorder) RecordSwarm(cfg swarm.Config, command string, results []swarm.Result) (*db.SwarmRun, error) {
	run := &db.SwarmRun{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Command:     command,
		ClientCount: cfg.Clients,
		MaxDelay:    cfg.MaxDelay,
		ExpectMode:  cfg.Expect,
		CreatedAt:   time.Now(),
	}

	for _, res := range results {
		row := db.ClientRow{
			Index:    res.Index,
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed,
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		run.Clients = append(run.Clients, row)
	}

	if _, err := r.db.InsertSwarm(run); err != nil {
		return nil, err
	}

	return run, nil
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

func computeFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
