package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/neilberkman/p0pkit/internal/core/config"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "p0pkit",
	Short: "P0P packet loss analyzer and client swarm launcher",
	Long: `p0pkit - tooling around the P0P UDP client/server

Analyze server capture logs for per-session packet loss, and launch swarms of
clients against a running server to measure their runtimes.`,
	SilenceUsage: true,
}

func init() {
	// Global flags
	defaultDB := filepath.Join(config.Dir(), "history.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "History database path")
}
