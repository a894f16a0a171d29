package swarm

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressReporter draws a progress bar as clients finish
type ProgressReporter struct {
	writer    io.Writer
	total     int
	current   int
	failed    int
	startTime time.Time
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(w io.Writer, total int) *ProgressReporter {
	return &ProgressReporter{
		writer:    w,
		total:     total,
		startTime: time.Now(),
	}
}

// Update records a finished client and redraws the bar
func (p *ProgressReporter) Update(r Result) {
	p.current++
	if r.Err != nil || r.ExitCode != 0 {
		p.failed++
	}

	_, _ = fmt.Fprintf(p.writer, "\r%s failed: %d | last: client %d (%d) %.3fs",
		RenderBar(p.current, p.total, 50), p.failed, r.Index, r.ExitCode, r.Elapsed.Seconds())
}

// Finish completes the progress display
func (p *ProgressReporter) Finish() {
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "\nCompleted: %d clients (%d failed) in %s\n", p.total, p.failed, elapsed.Round(time.Millisecond))
}

// RenderBar renders "[████░░░░]  50% (1/2)" at the given bar width
func RenderBar(current, total, width int) string {
	if total == 0 {
		return ""
	}

	pct := float64(current) / float64(total) * 100

	filled := int(float64(width) * float64(current) / float64(total))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	return fmt.Sprintf("[%s] %3.0f%% (%d/%d)", bar, pct, current, total)
}
