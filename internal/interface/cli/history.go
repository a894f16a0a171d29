package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historySince string
	historyKind  string
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analyses and swarm runs",
	Long: `List runs saved with --record, newest first.

The --since flag accepts natural language ("yesterday", "last week",
"3 days ago") as well as plain dates (2024-11-01).

Examples:
  p0pkit history
  p0pkit history --kind loss --limit 5
  p0pkit history --since yesterday`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to display")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only show runs after this date")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Filter by run kind (loss or swarm)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter := db.RunFilter{Limit: historyLimit}

	switch historyKind {
	case "", db.KindLoss, db.KindSwarm:
		filter.Kind = historyKind
	default:
		return fmt.Errorf("unknown kind %q (want %s or %s)", historyKind, db.KindLoss, db.KindSwarm)
	}

	if historySince != "" {
		since := parseDate(historySince, time.Now())
		if since == nil {
			return fmt.Errorf("could not parse date %q", historySince)
		}
		filter.Since = *since
	}

	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	runs, err := database.ListRuns(filter)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found. Use --record with 'p0pkit loss' or 'p0pkit swarm' to save one.")
		return nil
	}

	_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Showing %d run(s)", len(runs))))
	_, _ = fmt.Fprintln(out)
	for _, r := range runs {
		printRun(out, r)
	}

	return nil
}

func printRun(w io.Writer, r db.RunSummary) {
	_, _ = fmt.Fprintf(w, "%s #%d %s  %s\n",
		kindStyle.Render(r.Kind), r.ID, r.Label, dimStyle.Render(humanize.Time(r.CreatedAt)))

	switch r.Kind {
	case db.KindLoss:
		rate := 0.0
		if r.Denominator > 0 {
			rate = float64(r.TotalLost) / float64(r.Denominator) * 100
		}
		_, _ = fmt.Fprintf(w, "    Sessions: %d  Average loss: %.4f%% (%s / %s)\n",
			r.Count, rate, humanize.Comma(int64(r.TotalLost)), humanize.Comma(int64(r.Denominator)))
		if r.Problems > 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", warnStyle.Render(fmt.Sprintf("%d session(s) with missing sequence numbers", r.Problems)))
		}
	case db.KindSwarm:
		_, _ = fmt.Fprintf(w, "    Clients: %d\n", r.Count)
		if r.Problems > 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", warnStyle.Render(fmt.Sprintf("%d client(s) failed", r.Problems)))
		}
	}
	_, _ = fmt.Fprintln(w)
}

// parseDate accepts a few fixed layouts, then natural language
func parseDate(s string, now time.Time) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return &t
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err == nil && result != nil {
		return &result.Time
	}

	return nil
}
