package lossrate

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecimalPlaces is the precision used for every rendered rate
const DecimalPlaces = 4

// SessionResult is the outcome for one session id
type SessionResult struct {
	SessionID   string  `json:"session_id"`
	Lines       int     `json:"lines"`
	CheckedGaps bool    `json:"checked_gaps"` // false when the fast path was taken
	Missing     []int   `json:"missing,omitempty"`
	Lost        int     `json:"lost"`
	Rate        float64 `json:"rate"`
}

// Anomaly reports whether the session had gaps outside the trailing run
func (s SessionResult) Anomaly() bool {
	return len(s.Missing) > 0
}

// Report is the result of analyzing one log
type Report struct {
	Path          string          `json:"path"`
	TotalLines    int             `json:"total_lines"`
	ExpectedTotal int             `json:"expected_total"`
	Sessions      []SessionResult `json:"sessions"`
	TotalLost     int             `json:"total_lost"`
	Denominator   int             `json:"denominator"`
}

// Rate is the aggregate loss percentage. It is 0 when no sessions were found.
func (r *Report) Rate() float64 {
	return percent(r.TotalLost, r.Denominator)
}

// AnomalyCount is the number of sessions left out of the numerator but still
// counted in the denominator.
func (r *Report) AnomalyCount() int {
	n := 0
	for _, s := range r.Sessions {
		if s.Anomaly() {
			n++
		}
	}
	return n
}

// Write renders the per-session lines and the aggregate line
func (r *Report) Write(w io.Writer) error {
	for _, s := range r.Sessions {
		if _, err := fmt.Fprintln(w, s.String(r.ExpectedTotal)); err != nil {
			return err
		}
	}

	if len(r.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "no sessions to analyze")
		return err
	}

	_, err := fmt.Fprintln(w, r.Summary())
	return err
}

// Summary is the aggregate line
func (r *Report) Summary() string {
	return fmt.Sprintf("Average loss rate: %s (%d / %d)", formatRate(r.Rate()), r.TotalLost, r.Denominator)
}

// String renders the session line given the expected total
func (s SessionResult) String(expected int) string {
	if s.Anomaly() {
		nums := make([]string, len(s.Missing))
		for i, n := range s.Missing {
			nums[i] = strconv.Itoa(n)
		}
		return fmt.Sprintf("%s - missing seq: %s", s.SessionID, strings.Join(nums, " "))
	}
	return fmt.Sprintf("%s loss rate (%%): %s (%d / %d)", s.SessionID, formatRate(s.Rate), s.Lost, expected)
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', DecimalPlaces, 64)
}
