// Package watch follows the files tracked by a registry and reports when they
// disappear from disk or come back.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/registry"
)

// Kind classifies an Event.
type Kind string

const (
	Missing  Kind = "missing"
	Restored Kind = "restored"
)

// Event reports a tracked file whose presence on disk changed.
type Event struct {
	Kind Kind
	ID   uuid.UUID
	Path string // relative to the registry directory
}

// Callback receives events on the watcher goroutine.
type Callback func(Event)

// settle is how long the watcher waits after the last relevant event before
// checking the tracked files. Renames and editors that replace files produce
// bursts of events.
const settle = 200 * time.Millisecond

type tracked struct {
	id      uuid.UUID
	path    string
	present bool
}

// Watch snapshots the records of reg and watches the registry directory until
// ctx is cancelled. Changes to the registry made after Watch starts are not
// picked up.
func Watch(ctx context.Context, reg *registry.Registry, logger *slog.Logger, cb Callback) error {
	recs, err := reg.Records()
	if err != nil {
		return err
	}
	files := make(map[string]*tracked, len(recs))
	for _, rec := range recs {
		ok, err := rec.Exists()
		if err != nil {
			return err
		}
		files[rec.AbsPath()] = &tracked{id: rec.ID, path: rec.Path(), present: ok}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, reg.Directory, reg.StoreDir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", reg.Directory), slog.Int("tracked", len(files)))

	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settle)
			timerC = timer.C
			return
		}
		timer.Reset(settle)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			reconcile(files, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, reg.StoreDir); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// A directory moved back into place may hold tracked files.
					schedule()
					continue
				}
			}
			if _, ok := files[ev.Name]; ok || ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares every tracked file with the disk and reports changes.
func reconcile(files map[string]*tracked, logger *slog.Logger, cb Callback) {
	for abs, f := range files {
		_, err := os.Stat(abs)
		present := err == nil
		if present == f.present {
			continue
		}
		f.present = present
		ev := Event{Kind: Restored, ID: f.id, Path: f.path}
		if !present {
			ev.Kind = Missing
		}
		logger.Debug("watcher: tracked file changed", slog.String("path", f.path), slog.String("kind", string(ev.Kind)))
		if cb != nil {
			cb(ev)
		}
	}
}

// addDirsRecursive adds root and its subdirectories, except skip, to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root, skip string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == skip {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
