package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/neilberkman/p0pkit/internal/core/lossrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendLines(t *testing.T, path string, from, to int) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	for i := from; i < to; i++ {
		_, err := fmt.Fprintf(f, "0x0000abcd [%d] payload\n", i)
		require.NoError(t, err)
	}
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.log"), lossrate.New(4))
	assert.Error(t, err)
}

func TestStart_ReanalyzesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	appendLines(t, path, 0, 2)

	w, err := New(path, lossrate.New(4))
	require.NoError(t, err)
	w.SetSettle(20 * time.Millisecond)

	reports := make(chan *lossrate.Report, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx, func(r *lossrate.Report, err error) {
			if err == nil {
				reports <- r
			}
		})
	}()

	// Keep writing until the watcher has registered and reported
	deadline := time.After(5 * time.Second)
	next := 2
	var report *lossrate.Report
	for report == nil {
		appendLines(t, path, next, next+1)
		next++
		select {
		case report = <-reports:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no report after writing to the log")
		}
	}

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, "0x0000abcd", report.Sessions[0].SessionID)
	assert.Greater(t, report.TotalLines, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Analyses, 1)
}

func TestShouldProcessEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	appendLines(t, path, 0, 1)

	w, err := New(path, lossrate.New(4))
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to log", fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{"log recreated", fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{"log removed", fsnotify.Event{Name: path, Op: fsnotify.Remove}, false},
		{"chmod", fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: filepath.Join(dir, "other.log"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldProcessEvent(tt.event))
		})
	}
}

func TestAnalyze_ReportsReadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	appendLines(t, path, 0, 1)

	w, err := New(path, lossrate.New(4))
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	require.NoError(t, os.Remove(path))

	var got error
	w.analyze(func(r *lossrate.Report, err error) {
		assert.Nil(t, r)
		got = err
	})
	assert.Error(t, got)
	assert.Equal(t, 1, w.Stats().Errors)
}
