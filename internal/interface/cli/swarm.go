package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/neilberkman/p0pkit/internal/core/config"
	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/neilberkman/p0pkit/internal/core/recorder"
	"github.com/neilberkman/p0pkit/internal/core/swarm"
	"github.com/neilberkman/p0pkit/internal/interface/tui"
	"github.com/spf13/cobra"
)

var (
	swarmExpect   bool
	swarmEvent    bool
	swarmInput    string
	swarmTUI      bool
	swarmRecord   bool
	swarmProgress bool
)

var swarmCmd = &cobra.Command{
	Use:   "swarm <host> <port> [clients] [maxDelaySeconds]",
	Short: "Launch many clients against a server and time them",
	Long: `Start a number of client processes against a P0P server.

Each client waits a random delay between zero and maxDelaySeconds, then runs
with the input file on stdin. The time from launch to exit is reported per
client.

Examples:
  p0pkit swarm localhost 1234
  p0pkit swarm localhost 1234 20 5
  p0pkit swarm localhost 1234 20 5 --event -e
  p0pkit swarm localhost 1234 50 2 --tui --record`,
	Args: cobra.ArbitraryArgs,
	RunE: runSwarm,
}

func init() {
	rootCmd.AddCommand(swarmCmd)
	swarmCmd.Flags().BoolVarP(&swarmExpect, "expect", "e", false, "Type the input into each client line by line instead of redirecting it")
	swarmCmd.Flags().BoolVar(&swarmEvent, "event", false, "Use the event-based client instead of the thread-based one")
	swarmCmd.Flags().StringVar(&swarmInput, "input", "", "File fed to each client (default from config)")
	swarmCmd.Flags().BoolVar(&swarmTUI, "tui", false, "Show live progress in a terminal UI")
	swarmCmd.Flags().BoolVar(&swarmProgress, "progress", false, "Show a progress bar instead of per-client events")
	swarmCmd.Flags().BoolVar(&swarmRecord, "record", false, "Save the result to the history database")
}

func runSwarm(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) < 2 {
		_, _ = fmt.Fprintln(out, "Must provide the hostname and port number")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scfg, err := buildSwarmConfig(cfg, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var results []swarm.Result
	var command string
	switch {
	case swarmTUI:
		launcher, err := swarm.New(scfg, nil)
		if err != nil {
			return err
		}
		command = launcher.Command()
		results, err = tui.RunSwarm(ctx, launcher, fmt.Sprintf("%s:%s", scfg.Host, scfg.Port), scfg.Clients)
		if err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
	default:
		results, command, err = runSwarmText(ctx, out, scfg)
		if err != nil {
			return err
		}
	}

	printSwarmSummary(out, swarm.Summarize(results))

	if swarmRecord {
		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			_ = database.Close()
		}()

		run, err := recorder.New(database).RecordSwarm(scfg, command, results)
		if err != nil {
			return fmt.Errorf("failed to record swarm: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Recorded swarm #%d\n", run.ID)
	}

	return nil
}

func buildSwarmConfig(cfg *config.Config, args []string) (swarm.Config, error) {
	scfg := swarm.Config{
		Host:            args[0],
		Port:            args[1],
		Clients:         cfg.DefaultClients,
		Binary:          cfg.Binary(swarmEvent),
		CommandTemplate: cfg.ClientCommand,
		InputFile:       cfg.InputFile,
		Expect:          swarmExpect,
		ExpectInterval:  time.Duration(cfg.ExpectIntervalMS) * time.Millisecond,
	}

	if _, err := strconv.Atoi(scfg.Port); err != nil {
		return scfg, fmt.Errorf("invalid port %q", scfg.Port)
	}

	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return scfg, fmt.Errorf("invalid client count %q", args[2])
		}
		scfg.Clients = n
	}

	if len(args) > 3 {
		secs, err := strconv.ParseFloat(args[3], 64)
		if err != nil || secs < 0 {
			return scfg, fmt.Errorf("invalid max delay %q", args[3])
		}
		scfg.MaxDelay = time.Duration(secs * float64(time.Second))
	}

	if swarmInput != "" {
		scfg.InputFile = swarmInput
	}

	return scfg, nil
}

func runSwarmText(ctx context.Context, out io.Writer, scfg swarm.Config) ([]swarm.Result, string, error) {
	var mu sync.Mutex
	var progress *swarm.ProgressReporter
	if swarmProgress {
		progress = swarm.NewProgressReporter(out, scfg.Clients)
	}

	observer := func(ev swarm.Event) {
		if progress != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printEvent(out, ev)
	}

	launcher, err := swarm.New(scfg, observer)
	if err != nil {
		return nil, "", err
	}

	_, _ = fmt.Fprintf(out, "Launching %d client(s): %s\n", scfg.Clients, launcher.Command())

	var results []swarm.Result
	for r := range launcher.Run(ctx) {
		results = append(results, r)
		if progress != nil {
			progress.Update(r)
		}
	}

	if progress != nil {
		progress.Finish()
	}

	return results, launcher.Command(), nil
}

func printEvent(w io.Writer, ev swarm.Event) {
	switch ev.Type {
	case swarm.EventExecuting:
		_, _ = fmt.Fprintf(w, "Executing %d\n", ev.Index)
	case swarm.EventSpawned:
		_, _ = fmt.Fprintf(w, "Spawned %d\n", ev.Index)
	case swarm.EventExited:
		_, _ = fmt.Fprintf(w, "client %d (%d): %.6f\n", ev.Index, ev.Result.ExitCode, ev.Result.Elapsed.Seconds())
	case swarm.EventError:
		_, _ = fmt.Fprintf(w, "client %d error: %v\n", ev.Index, ev.Result.Err)
	}
}

func printSwarmSummary(w io.Writer, stats swarm.Stats) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Clients:  %d (%d failed)\n", stats.Clients, stats.Failures)
	if stats.Clients > stats.Failures || stats.Max > 0 {
		_, _ = fmt.Fprintf(w, "Runtime:  min %s / mean %s / max %s\n",
			stats.Min.Round(time.Millisecond), stats.Mean.Round(time.Millisecond), stats.Max.Round(time.Millisecond))
	}
}
