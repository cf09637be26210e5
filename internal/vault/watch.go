package vault

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RenameWindow is how long a rename waits for the matching create before it
// is reported as a delete.
const RenameWindow = 250 * time.Millisecond

// EventKind classifies a file event.
type EventKind int

const (
	Modified EventKind = iota
	Renamed
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	default:
		return "modified"
	}
}

// Event is a change to a Markdown file in the vault.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string // set for Renamed
}

// Watcher reports Markdown file changes under the vault.
//
// fsnotify reports a rename as a Rename on the old name followed by a Create
// on the new one. The watcher pairs them into a single Renamed event.
type Watcher struct {
	vault  *Vault
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	pending     string // old path of an unpaired rename
	pendingTime time.Time
}

// NewWatcher watches every non-hidden folder of v.
func NewWatcher(v *Vault, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{vault: v, fsw: fsw, logger: logger}
	if err := w.addTree(v.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.vault.root && isHidden(d.Name()) {
			return fs.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Run delivers events to handle until ctx is done. handle runs on the
// watcher goroutine and should return quickly.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	defer w.fsw.Close()

	flush := time.NewTimer(RenameWindow)
	flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			hadPending := w.pending != ""
			w.process(ev, handle)
			if w.pending != "" && !hadPending {
				flush.Reset(RenameWindow)
			}
		case <-flush.C:
			w.flush(handle)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) process(ev fsnotify.Event, handle func(Event)) {
	rel, err := w.vault.Rel(ev.Name)
	if err != nil {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !isHidden(filepath.Base(ev.Name)) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("watch folder", "path", rel, "err", err)
				}
			}
			return
		}
	}

	if !IsMarkdown(rel) || isHidden(filepath.Base(rel)) {
		return
	}

	switch {
	case ev.Has(fsnotify.Rename):
		w.flush(handle)
		w.pending = rel
		w.pendingTime = time.Now()
	case ev.Has(fsnotify.Create):
		if w.pending != "" && time.Since(w.pendingTime) <= RenameWindow {
			old := w.pending
			w.pending = ""
			if old == rel {
				// saved by writing a new file over the old name
				handle(Event{Kind: Modified, Path: rel})
				return
			}
			handle(Event{Kind: Renamed, Path: rel, OldPath: old})
			return
		}
		w.flush(handle)
		handle(Event{Kind: Modified, Path: rel})
	case ev.Has(fsnotify.Write):
		handle(Event{Kind: Modified, Path: rel})
	case ev.Has(fsnotify.Remove):
		handle(Event{Kind: Deleted, Path: rel})
	}
}

// flush reports an unpaired rename as a delete.
func (w *Watcher) flush(handle func(Event)) {
	if w.pending == "" {
		return
	}
	old := w.pending
	w.pending = ""
	handle(Event{Kind: Deleted, Path: old})
}
