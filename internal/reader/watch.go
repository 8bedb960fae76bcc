package reader

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/suykerbuyk/cmv/internal/layout"
)

// EventKind classifies a Watch notification.
type EventKind int

const (
	// EventCreated reports a new transcript file.
	EventCreated EventKind = iota
	// EventModified reports a write to an existing transcript file.
	EventModified
)

// Event is emitted by Watch for every create/write under a project's
// transcript tree.
type Event struct {
	Kind      EventKind
	Path      string
	SessionID string
}

// Watch follows the host's projects/ tree for new or modified *.jsonl
// files, built on github.com/fsnotify/fsnotify — declared direct in the
// teacher's go.mod but unused in its source; wired in here so a
// long-running caller (e.g. a future TUI) can refresh its session list
// without re-walking the filesystem on every keystroke. Pure addition on
// top of DiscoverSessions: it changes nothing about trim/analyze semantics.
func (r *Reader) Watch() (<-chan Event, io.Closer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	root := layout.ProjectsDir(r.HostHome)
	if err := addRecursive(w, root); err != nil {
		w.Close()
		return nil, nil, err
	}

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				handleWatchEvent(w, ev, events)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.Log.Warn().Err(err).Msg("watch error")
			}
		}
	}()

	return events, w, nil
}

func handleWatchEvent(w *fsnotify.Watcher, ev fsnotify.Event, out chan<- Event) {
	name := filepath.Base(ev.Name)

	if ev.Op&fsnotify.Create != 0 {
		// A newly created project directory needs its own watch.
		if isLikelyDir(ev.Name) {
			_ = w.Add(ev.Name)
			return
		}
	}

	if !strings.HasSuffix(name, ".jsonl") {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		out <- Event{Kind: EventCreated, Path: ev.Name, SessionID: strings.TrimSuffix(name, ".jsonl")}
	case ev.Op&fsnotify.Write != 0:
		out <- Event{Kind: EventModified, Path: ev.Name, SessionID: strings.TrimSuffix(name, ".jsonl")}
	}
}

func isLikelyDir(path string) bool {
	return !strings.Contains(filepath.Base(path), ".")
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil // projects dir may not exist yet; nothing to watch
	}
	if err := w.Add(root); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = w.Add(filepath.Join(root, e.Name()))
		}
	}
	return nil
}
