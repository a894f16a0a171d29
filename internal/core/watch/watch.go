package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/neilberkman/p0pkit/internal/core/lossrate"
	"github.com/neilberkman/p0pkit/pkg/p0plog"
)

// DefaultSettle is how long the log must stay quiet before it is re-read
const DefaultSettle = 250 * time.Millisecond

// Watcher re-analyzes a capture log each time the server appends to it
type Watcher struct {
	path     string
	analyzer *lossrate.Analyzer
	watcher  *fsnotify.Watcher
	settle   time.Duration
	stats    *Stats
}

// Stats tracks watcher activity
type Stats struct {
	StartTime    time.Time
	Analyses     int
	LastAnalysis time.Time
	Errors       int
}

// Handler receives each fresh report, or the error that prevented one
type Handler func(report *lossrate.Report, err error)

// New creates a watcher for the log at path
func New(path string, analyzer *lossrate.Analyzer) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("log does not exist: %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		analyzer: analyzer,
		watcher:  watcher,
		settle:   DefaultSettle,
		stats:    &Stats{StartTime: time.Now()},
	}, nil
}

// SetSettle changes the quiet period before a re-read
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Stats returns a copy of the activity counters
func (w *Watcher) Stats() Stats {
	return *w.stats
}

// Start blocks until ctx is done, calling h after every burst of writes.
// The directory is watched rather than the file so a log that is recreated
// is still followed.
func (w *Watcher) Start(ctx context.Context, h Handler) error {
	defer func() {
		_ = w.watcher.Close()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.analyze(h)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.stats.Errors++
			h(nil, fmt.Errorf("watcher error: %w", err))
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}

	return event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create
}

func (w *Watcher) analyze(h Handler) {
	log, err := p0plog.ReadFile(w.path)
	if err != nil {
		w.stats.Errors++
		h(nil, err)
		return
	}

	report := w.analyzer.Analyze(log)
	w.stats.Analyses++
	w.stats.LastAnalysis = time.Now()
	h(report, nil)
}
