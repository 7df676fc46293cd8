package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"testforge/internal/logging"
)

// Watcher monitors a directory of .jsonl chunk files and re-syncs touched
// files into the index. Rapid saves are debounced so an editor writing a
// file in several bursts triggers exactly one sync per settle window.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	index       Indexer
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for status reporting and tests.
type WatcherStats struct {
	Events        int
	Syncs         int
	ChunksIndexed int
	Removals      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// DefaultDebounce is the settle window between the last write to a file and
// its re-sync.
const DefaultDebounce = 500 * time.Millisecond

// NewWatcher creates a watcher over dir. debounce <= 0 selects the default
// window.
func NewWatcher(dir string, index Indexer, debounce time.Duration) (*Watcher, error) {
	if index == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		watcher:     fw,
		index:       index,
		dir:         dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fail := func(err error) error {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fail(fmt.Errorf("creating watch dir: %w", err))
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fail(fmt.Errorf("watching %s: %w", w.dir, err))
	}

	logging.Ingest("Watching %s for chunk files (debounce %s)", w.dir, w.debounceDur)
	go w.run(ctx)
	return nil
}

// Stop halts the event loop and closes the underlying watcher. Safe to call
// whether or not Start ran.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		logging.IngestError("Closing watcher: %v", err)
	}
	logging.Ingest("Watcher stopped")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Rescan syncs every chunk file currently in the directory, regardless of
// events. Per-file failures are counted and logged, not returned; only a
// missing directory fails the call.
func (w *Watcher) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isChunkFile(entry.Name()) {
			continue
		}
		w.settle(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// run is the watcher event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.IngestDebug("Watcher context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.IngestError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

// tickInterval keeps the settle check comfortably inside the debounce
// window, so short test windows still settle promptly.
func (w *Watcher) tickInterval() time.Duration {
	tick := 100 * time.Millisecond
	if w.debounceDur < tick {
		tick = w.debounceDur
	}
	return tick
}

// handleEvent records a chunk-file event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isChunkFile(event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
	case event.Op&fsnotify.Write != 0:
	case event.Op&fsnotify.Remove != 0:
	case event.Op&fsnotify.Rename != 0:
	default:
		return // chmod etc.
	}

	logging.IngestDebug("Event %s for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebounced syncs files whose last event has settled past the
// debounce window.
func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.settle(ctx, path)
	}
}

// settle brings the index in line with one file: a present file is synced,
// a vanished file has its chunks removed under the file's default source.
func (w *Watcher) settle(ctx context.Context, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		removed, err := w.index.DeleteBySource(ctx, defaultSource(path))
		w.mu.Lock()
		if err != nil {
			w.stats.Errors++
		} else {
			w.stats.Removals++
		}
		w.mu.Unlock()
		if err != nil {
			logging.IngestError("Removing chunks of deleted %s: %v", path, err)
		} else {
			logging.Ingest("File %s deleted, removed %d chunks", path, removed)
		}
		return
	}

	n, err := Sync(ctx, w.index, path)
	w.mu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.Syncs++
		w.stats.ChunksIndexed += n
	}
	w.mu.Unlock()
	if err != nil {
		logging.IngestError("Sync of %s failed: %v", path, err)
	}
}

func isChunkFile(name string) bool {
	return strings.HasSuffix(name, ".jsonl")
}
