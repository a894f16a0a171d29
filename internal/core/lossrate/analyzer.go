package lossrate

import (
	"strings"

	"github.com/neilberkman/p0pkit/pkg/p0plog"
)

const (
	// DefaultExpectedTotal is the number of packets a complete session sends
	// for the reference input file.
	DefaultExpectedTotal = 58936

	// HeaderFooterLines covers the session created/closed and GOODBYE lines
	// the server writes around the data lines.
	HeaderFooterLines = 3
)

// Analyzer computes per-session packet loss over a capture log
type Analyzer struct {
	ExpectedTotal int
}

// New creates an analyzer expecting n packets per session
func New(n int) *Analyzer {
	if n <= 0 {
		n = DefaultExpectedTotal
	}
	return &Analyzer{ExpectedTotal: n}
}

// Analyze runs the full loss analysis over a loaded log
func (a *Analyzer) Analyze(log *p0plog.Log) *Report {
	ids := SessionIDs(log.Lines)

	report := &Report{
		Path:          log.Path,
		TotalLines:    len(log.Lines),
		ExpectedTotal: a.ExpectedTotal,
		// Anomalous sessions stay in the denominator. See Report.AnomalyCount.
		Denominator: a.ExpectedTotal * len(ids),
		Sessions:    make([]SessionResult, 0, len(ids)),
	}

	for _, id := range ids {
		result := a.analyzeSession(id, sessionRecord(log.Lines, id))
		if !result.Anomaly() {
			report.TotalLost += result.Lost
		}
		report.Sessions = append(report.Sessions, result)
	}

	return report
}

func (a *Analyzer) analyzeSession(id string, record []p0plog.Line) SessionResult {
	result := SessionResult{
		SessionID: id,
		Lines:     len(record),
	}

	if len(record) != a.ExpectedTotal+HeaderFooterLines {
		result.CheckedGaps = true

		seqs := make(map[int]struct{}, len(record))
		for _, line := range record {
			if line.HasSeq {
				seqs[line.Seq] = struct{}{}
			}
		}

		top := a.ExpectedTotal + 1
		missing := MissingSet(seqs, top)
		if len(TrimTrailing(missing, top)) > 0 {
			result.Missing = missing
			return result
		}
	}

	for _, line := range record {
		if line.Lost {
			result.Lost++
		}
	}
	result.Rate = percent(result.Lost, a.ExpectedTotal)

	return result
}

// SessionIDs returns the distinct session ids in first-seen order
func SessionIDs(lines []p0plog.Line) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, line := range lines {
		if line.SessionID == "" {
			continue
		}
		if _, ok := seen[line.SessionID]; ok {
			continue
		}
		seen[line.SessionID] = struct{}{}
		ids = append(ids, line.SessionID)
	}
	return ids
}

// sessionRecord selects lines by plain text prefix, so id 0x1 also matches
// lines of 0x12. Server ids are zero padded to 8 digits.
func sessionRecord(lines []p0plog.Line, id string) []p0plog.Line {
	var record []p0plog.Line
	for _, line := range lines {
		if strings.HasPrefix(line.Text, id) {
			record = append(record, line)
		}
	}
	return record
}

// MissingSet returns every integer in [0, top] absent from seqs, ascending
func MissingSet(seqs map[int]struct{}, top int) []int {
	var missing []int
	for i := 0; i <= top; i++ {
		if _, ok := seqs[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// TrimTrailing drops the contiguous run of missing numbers ending at top.
// missing must be ascending, as MissingSet returns it.
// Those come from a capture that stopped early, not from loss.
// The input is not modified.
func TrimTrailing(missing []int, top int) []int {
	end := len(missing)
	for end > 0 && missing[end-1] == top {
		end--
		top--
	}
	return missing[:end:end]
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
