package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history database statistics",
	Long: `Display statistics about recorded runs.

Shows analysis and swarm counts, failure totals, date range, and storage info.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	stats, err := database.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Database Statistics")
	_, _ = fmt.Fprintln(out, "===================")
	_, _ = fmt.Fprintln(out)

	_, _ = fmt.Fprintf(out, "Loss Analyses:     %s\n", humanize.Comma(int64(stats.AnalysisRuns)))
	_, _ = fmt.Fprintf(out, "Sessions Analyzed: %s (%s with gaps)\n",
		humanize.Comma(int64(stats.SessionsAnalyzed)), humanize.Comma(int64(stats.AnomalySessions)))
	_, _ = fmt.Fprintf(out, "Swarm Runs:        %s\n", humanize.Comma(int64(stats.SwarmRuns)))
	_, _ = fmt.Fprintf(out, "Clients Launched:  %s (%s failed)\n",
		humanize.Comma(int64(stats.ClientsLaunched)), humanize.Comma(int64(stats.FailedClients)))
	if stats.MeanClientTime > 0 {
		_, _ = fmt.Fprintf(out, "Mean Client Time:  %s\n", stats.MeanClientTime.Round(time.Millisecond))
	}
	_, _ = fmt.Fprintln(out)

	if !stats.OldestRun.IsZero() {
		_, _ = fmt.Fprintf(out, "Oldest Run:        %s (%s)\n",
			stats.OldestRun.Local().Format("Jan 2, 2006 3:04 PM"), humanize.Time(stats.OldestRun))
		_, _ = fmt.Fprintf(out, "Newest Run:        %s (%s)\n",
			stats.NewestRun.Local().Format("Jan 2, 2006 3:04 PM"), humanize.Time(stats.NewestRun))
		_, _ = fmt.Fprintln(out)
	}

	fileInfo, err := os.Stat(database.Path())
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Database Location: %s\n", database.Path())
	_, _ = fmt.Fprintf(out, "Database Size:     %s\n", humanize.Bytes(uint64(fileInfo.Size())))

	return nil
}
