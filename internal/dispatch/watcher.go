// Package dispatch ingests repository_dispatch style trigger files dropped
// into a local spool directory. External automation writes one JSON file
// per dispatch; the watcher parses it, publishes the event, and removes
// the file.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kfujii/agenthook/internal/event"
	"github.com/kfujii/agenthook/internal/trigger"
)

// DebounceInterval is the delay after an fsnotify event before reading the
// file, letting write+rename sequences settle.
const DebounceInterval = 100 * time.Millisecond

// dispatchFile is the on-disk shape of a spooled dispatch.
type dispatchFile struct {
	EventType     string `json:"event_type"`
	ClientPayload struct {
		Prompt string `json:"prompt"`
	} `json:"client_payload"`
	Repository struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
	} `json:"repository"`
	Sender string `json:"sender"`
}

type Watcher struct {
	spoolDir string
	bus      *event.Bus

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(spoolDir string, bus *event.Bus) *Watcher {
	return &Watcher{
		spoolDir: spoolDir,
		bus:      bus,
		timers:   make(map[string]*time.Timer),
	}
}

// Run watches the spool directory until ctx is canceled. Files already
// present at startup are ingested before watching begins.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.spoolDir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory %s: %w", w.spoolDir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create spool watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.spoolDir); err != nil {
		return fmt.Errorf("failed to watch spool directory %s: %w", w.spoolDir, err)
	}
	slog.Info("watching dispatch spool", "dir", w.spoolDir)

	w.ingestExisting()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			// Create catches atomic rename deploys, Write catches
			// in-place writes.
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleIngest(ev.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("spool watcher error", "error", err)
		}
	}
}

func (w *Watcher) ingestExisting() {
	entries, err := os.ReadDir(w.spoolDir)
	if err != nil {
		slog.Warn("failed to scan spool directory", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		w.ingest(filepath.Join(w.spoolDir, e.Name()))
	}
}

// scheduleIngest debounces rapid event sequences for the same file.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(DebounceInterval, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

// ingest parses one spool file, publishes the resulting event, and removes
// the file. A malformed file is removed without publishing so it is not
// retried forever.
func (w *Watcher) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read dispatch file", "path", path, "error", err)
		}
		return
	}

	var df dispatchFile
	if err := json.Unmarshal(data, &df); err != nil {
		slog.Warn("discarding malformed dispatch file", "path", path, "error", err)
		_ = os.Remove(path)
		return
	}

	e := trigger.New(trigger.KindRepositoryDispatch)
	e.Action = df.EventType
	e.Prompt = df.ClientPayload.Prompt
	e.Actor = df.Sender
	e.Repo = trigger.Repository{Owner: df.Repository.Owner, Name: df.Repository.Name}

	slog.Info("ingested dispatch", "event", e.ID, "action", e.Action, "path", path)
	w.bus.Publish(e)

	if err := os.Remove(path); err != nil {
		slog.Warn("failed to remove dispatch file", "path", path, "error", err)
	}
}
