package swarm

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Result) []Result {
	var results []Result
	for r := range ch {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) observe(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) count(t EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestRun_AllClientsReport(t *testing.T) {
	events := &eventLog{}
	l, err := New(Config{
		Clients:         5,
		MaxDelay:        20 * time.Millisecond,
		Binary:          "true",
		CommandTemplate: "{{{binary}}}",
	}, events.observe)
	require.NoError(t, err)

	results := collect(l.Run(context.Background()))

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, 0, r.ExitCode)
		assert.NoError(t, r.Err)
		assert.Positive(t, r.Elapsed)
	}
	assert.Equal(t, 5, events.count(EventExecuting))
	assert.Equal(t, 5, events.count(EventSpawned))
	assert.Equal(t, 5, events.count(EventExited))
	assert.Equal(t, 0, events.count(EventError))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	l, err := New(Config{
		Clients:         2,
		Host:            "localhost",
		Port:            "3",
		Binary:          "exit",
		CommandTemplate: "{{{binary}}} {{{port}}}",
	}, nil)
	require.NoError(t, err)

	results := collect(l.Run(context.Background()))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 3, r.ExitCode)
		assert.NoError(t, r.Err)
	}
}

func TestRun_ZeroClients(t *testing.T) {
	l, err := New(Config{Binary: "true", CommandTemplate: "{{{binary}}}"}, nil)
	require.NoError(t, err)

	assert.Empty(t, collect(l.Run(context.Background())))
}

func TestRun_StartFailureDoesNotStopOthers(t *testing.T) {
	events := &eventLog{}
	l, err := New(Config{Clients: 3, Binary: "true", CommandTemplate: "{{{binary}}}"}, events.observe)
	require.NoError(t, err)
	l.shell = filepath.Join(t.TempDir(), "missing-shell")

	results := collect(l.Run(context.Background()))

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.Equal(t, -1, r.ExitCode)
	}
	assert.Equal(t, 3, events.count(EventError))
	assert.Equal(t, 0, events.count(EventSpawned))
}

func TestRun_CancelAbortsPendingJitter(t *testing.T) {
	l, err := New(Config{Clients: 2, MaxDelay: time.Hour, Binary: "true", CommandTemplate: "{{{binary}}}"}, nil)
	require.NoError(t, err)
	l.jitter = func(time.Duration) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	ch := l.Run(ctx)
	cancel()

	results := collect(ch)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Equal(t, -1, r.ExitCode)
	}
}

func TestRun_ExpectModeDrivesStdin(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	output := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(input, []byte("one\ntwo\nthree"), 0644))

	l, err := New(Config{
		Clients:         1,
		Host:            output,
		Binary:          "cat >",
		CommandTemplate: "{{{binary}}} {{{host}}}",
		InputFile:       input,
		Expect:          true,
		ExpectInterval:  time.Millisecond,
	}, nil)
	require.NoError(t, err)

	results := collect(l.Run(context.Background()))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", string(got))
}

func TestRun_RedirectedInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	output := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(input, []byte("payload\n"), 0644))

	l, err := New(Config{
		Clients:         1,
		Host:            output,
		Binary:          "cat >",
		CommandTemplate: "{{{binary}}} {{{host}}}",
		InputFile:       input,
	}, nil)
	require.NoError(t, err)

	results := collect(l.Run(context.Background()))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "payload\n", string(got))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Clients: -1, Binary: "true", CommandTemplate: "{{{binary}}}"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Clients: 1, MaxDelay: -time.Second, Binary: "true", CommandTemplate: "{{{binary}}}"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Clients: 1, Binary: "true"}, nil)
	assert.Error(t, err)
}

func TestRandomDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), randomDelay(0))
	for i := 0; i < 100; i++ {
		d := randomDelay(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 10*time.Millisecond)
	}
}
