package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/p0pkit/internal/core/config"
	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/neilberkman/p0pkit/internal/core/lossrate"
	"github.com/neilberkman/p0pkit/internal/core/recorder"
	"github.com/neilberkman/p0pkit/internal/core/watch"
	"github.com/neilberkman/p0pkit/pkg/p0plog"
	"github.com/spf13/cobra"
)

var (
	lossExpected int
	lossRecord   bool
	lossCopy     bool
	lossWatch    bool
)

var lossCmd = &cobra.Command{
	Use:     "loss <file>",
	Aliases: []string{"packet-loss"},
	Short:   "Report per-session packet loss from a server log",
	Long: `Scan a P0P server log for per-session packet loss.

Sessions whose sequence numbers have gaps (other than a run at the very end of
the capture) are reported with their missing sequence numbers instead of a
loss rate.

Examples:
  p0pkit loss server.log
  p0pkit loss server.log --expected 1000
  p0pkit loss server.log --record --copy
  p0pkit loss server.log --watch`,
	Args: cobra.ArbitraryArgs,
	RunE: runLoss,
}

func init() {
	rootCmd.AddCommand(lossCmd)
	lossCmd.Flags().IntVar(&lossExpected, "expected", config.DefaultExpectedLines, "Packets a complete session sends")
	lossCmd.Flags().BoolVar(&lossRecord, "record", false, "Save the result to the history database")
	lossCmd.Flags().BoolVar(&lossCopy, "copy", false, "Copy the average loss line to the clipboard")
	lossCmd.Flags().BoolVar(&lossWatch, "watch", false, "Keep running and re-analyze whenever the log changes")
}

func runLoss(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) != 1 {
		_, _ = fmt.Fprintln(out, "must provide a relative filename to analyze.")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	expected := cfg.ExpectedLines
	if cmd.Flags().Changed("expected") {
		expected = lossExpected
	}

	path, err := resolvePath(args[0])
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "analyzing %s\n", path)

	log, err := p0plog.ReadFile(path)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "total lines: %d\n", len(log.Lines))

	report := lossrate.New(expected).Analyze(log)

	_, _ = fmt.Fprintf(out, "found %d session ids\n", len(report.Sessions))

	if err := report.Write(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if n := report.AnomalyCount(); n > 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
			"Warning: %d session(s) with sequence gaps are left out of the lost count but still counted in the average's denominator\n", n)
	}

	if lossCopy && len(report.Sessions) > 0 {
		if err := clipboard.WriteAll(report.Summary()); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to copy to clipboard: %v\n", err)
		}
	}

	if lossRecord {
		if err := recordAnalysis(cmd, report, log.Size); err != nil {
			return err
		}
	}

	if lossWatch {
		return watchLog(cmd, path, expected)
	}

	return nil
}

func watchLog(cmd *cobra.Command, path string, expected int) error {
	w, err := watch.New(path, lossrate.New(expected))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)\n", path)

	if err := w.Start(ctx, func(report *lossrate.Report, err error) {
		printWatchUpdate(out, cmd.ErrOrStderr(), time.Now(), report, err)
	}); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	stats := w.Stats()
	_, _ = fmt.Fprintf(out, "Stopped after %d analyses (%d errors)\n", stats.Analyses, stats.Errors)
	return nil
}

func printWatchUpdate(out, errOut io.Writer, now time.Time, report *lossrate.Report, err error) {
	ts := now.Format("15:04:05")
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "[%s] Warning: %v\n", ts, err)
		return
	}

	if len(report.Sessions) == 0 {
		_, _ = fmt.Fprintf(out, "[%s] %d lines, no sessions to analyze\n", ts, report.TotalLines)
		return
	}

	_, _ = fmt.Fprintf(out, "[%s] %d lines, %d sessions (%d with gaps). %s\n",
		ts, report.TotalLines, len(report.Sessions), report.AnomalyCount(), report.Summary())
}

func recordAnalysis(cmd *cobra.Command, report *lossrate.Report, size int64) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	run, previous, err := recorder.New(database).RecordAnalysis(report, size)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded analysis #%d (%s)\n", run.ID, humanize.Bytes(uint64(run.FileSize)))
	if previous != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: identical log already analyzed as #%d %s\n",
			previous.ID, humanize.Time(previous.CreatedAt))
	}

	return nil
}

// resolvePath interprets a relative path against the working directory
func resolvePath(arg string) (string, error) {
	if filepath.IsAbs(arg) {
		return arg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return filepath.Join(cwd, arg), nil
}
