package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config describes one swarm run
type Config struct {
	Host            string
	Port            string
	Clients         int
	MaxDelay        time.Duration // Upper bound of each client's start jitter
	Binary          string
	CommandTemplate string
	InputFile       string
	Expect          bool          // Drive stdin line by line instead of redirecting the file
	ExpectInterval  time.Duration // Pause between lines in expect mode
}

// Result is the outcome of one client process
type Result struct {
	Index    int
	ExitCode int // -1 when the process never ran to completion
	Elapsed  time.Duration
	Err      error // Start, wait or stdin driver failure; a non-zero exit is not an error
}

// EventType identifies a client lifecycle event
type EventType int

const (
	EventExecuting EventType = iota
	EventSpawned
	EventExited
	EventError
)

// Event is delivered to the Observer as a client moves through its lifecycle
type Event struct {
	Type   EventType
	Index  int
	Result Result // Set for EventExited and EventError
}

// Observer receives lifecycle events. It is called from the client goroutines
// and must be safe for concurrent use.
type Observer func(Event)

// Launcher starts a swarm of client processes
type Launcher struct {
	cfg      Config
	command  string
	observer Observer
	shell    string
	jitter   func(max time.Duration) time.Duration
}

// New creates a launcher, rendering the client command once up front
func New(cfg Config, observer Observer) (*Launcher, error) {
	if cfg.Clients < 0 {
		return nil, fmt.Errorf("invalid client count: %d", cfg.Clients)
	}
	if cfg.MaxDelay < 0 {
		return nil, fmt.Errorf("invalid max delay: %s", cfg.MaxDelay)
	}

	command, err := BuildCommand(cfg)
	if err != nil {
		return nil, err
	}

	if observer == nil {
		observer = func(Event) {}
	}

	return &Launcher{
		cfg:      cfg,
		command:  command,
		observer: observer,
		shell:    "/bin/sh",
		jitter:   randomDelay,
	}, nil
}

// Command returns the rendered client shell command
func (l *Launcher) Command() string {
	return l.command
}

// Run starts every client at once and returns a channel carrying one Result
// per client. The channel is closed when all clients have finished.
//
// Cancelling ctx aborts clients still waiting out their jitter. Clients that
// have started are left to exit on their own.
func (l *Launcher) Run(ctx context.Context) <-chan Result {
	results := make(chan Result, l.cfg.Clients)

	var g errgroup.Group
	for i := 0; i < l.cfg.Clients; i++ {
		delay := l.jitter(l.cfg.MaxDelay)
		g.Go(func() error {
			results <- l.runClient(ctx, i, delay)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}

func (l *Launcher) runClient(ctx context.Context, index int, delay time.Duration) Result {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{Index: index, ExitCode: -1, Err: ctx.Err()}
	case <-timer.C:
	}

	cmd := exec.Command(l.shell, "-c", l.command)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	var stdin io.WriteCloser
	if l.cfg.Expect {
		var err error
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return l.fail(index, 0, fmt.Errorf("failed to open client stdin: %w", err))
		}
	}

	l.observer(Event{Type: EventExecuting, Index: index})
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return l.fail(index, time.Since(start), fmt.Errorf("failed to start client: %w", err))
	}
	l.observer(Event{Type: EventSpawned, Index: index})

	var driveErr error
	if stdin != nil {
		driveErr = l.drive(stdin)
	}

	waitErr := cmd.Wait()
	result := Result{
		Index:    index,
		ExitCode: cmd.ProcessState.ExitCode(),
		Elapsed:  time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		result.Err = fmt.Errorf("failed to wait for client: %w", waitErr)
	case driveErr != nil:
		result.Err = driveErr
	}

	if result.Err != nil {
		l.observer(Event{Type: EventError, Index: index, Result: result})
	}
	l.observer(Event{Type: EventExited, Index: index, Result: result})

	return result
}

func (l *Launcher) fail(index int, elapsed time.Duration, err error) Result {
	result := Result{Index: index, ExitCode: -1, Elapsed: elapsed, Err: err}
	l.observer(Event{Type: EventError, Index: index, Result: result})
	return result
}

// drive plays the input file into the client's stdin and closes it
func (l *Launcher) drive(stdin io.WriteCloser) error {
	defer func() {
		_ = stdin.Close()
	}()

	f, err := os.Open(l.cfg.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := Drive(stdin, f, l.cfg.ExpectInterval); err != nil {
		return fmt.Errorf("failed to drive client: %w", err)
	}
	return nil
}

func randomDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
