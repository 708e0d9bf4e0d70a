package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/marginalia/pkg/core"
)

// Watch emits an event whenever a document matching pattern is created,
// modified or deleted. Patterns use doublestar syntax against document IDs
// ("**" or "" for all, "drafts/*"). The channel closes when ctx ends.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	events := make(chan core.Event)
	w := newWatchWorker(r, pattern, events)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

// recursiveAdd registers the root and every document directory.
func (r *Repository) recursiveAdd(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(r.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != r.Path && (d.Name() == ".git" || d.Name() == r.config.SystemDir) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// resolveID maps a file path to its document ID.
func (r *Repository) resolveID(path string) (string, error) {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, docExt) {
		return "", fmt.Errorf("not a document: %s", rel)
	}
	return strings.TrimSuffix(rel, docExt), nil
}

// shouldIgnore filters events on temp files, non-documents, reserved
// directories and IDs outside pattern.
func (r *Repository) shouldIgnore(event fsnotify.Event, pattern string) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, TempFilePrefix) || filepath.Ext(name) != docExt {
		return true
	}
	rel, err := filepath.Rel(r.Path, event.Name)
	if err != nil {
		return true
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if first == ".git" || first == r.config.SystemDir || first == ".." {
		return true
	}
	if pattern == "" || pattern == "**" {
		return false
	}
	id := strings.TrimSuffix(filepath.ToSlash(rel), docExt)
	ok, err := doublestar.Match(pattern, id)
	return err != nil || !ok
}

func (r *Repository) mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	}
	return ""
}

// Reconcile compares the files on disk with the header index and returns
// the changes the watcher may have missed, e.g. while git rewrote the tree.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Event, error) {
	if err := r.index.load(); err != nil {
		return nil, err
	}
	before := r.index.all()
	now := time.Now().Unix()
	seen := make(map[string]bool)
	var events []core.Event

	err := r.walkDocuments(func(relPath, id string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[relPath] = true
		old, known := before[relPath]
		switch {
		case !known:
			events = append(events, core.Event{Type: core.EventCreate, ID: id, Timestamp: now})
		case !old.fresh(info):
			events = append(events, core.Event{Type: core.EventModify, ID: id, Timestamp: now})
		default:
			return nil
		}
		title, updated := old.Title, old.UpdatedAt
		if data, err := os.ReadFile(filepath.Join(r.Path, filepath.FromSlash(relPath))); err == nil {
			if d, _, err := parseDocument(data); err == nil {
				title, updated = d.Title, d.UpdatedAt
			}
		}
		r.index.put(relPath, header{ID: id, Title: title, UpdatedAt: updated, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for relPath, e := range before {
		if !seen[relPath] {
			events = append(events, core.Event{Type: core.EventDelete, ID: e.ID, Timestamp: now})
		}
	}
	r.index.retain(seen)
	if !r.config.ReadOnly {
		if err := r.index.flush(); err != nil {
			return events, err
		}
	}
	r.recordReconcile()
	return events, nil
}

// debouncer coalesces bursts of events per document ID.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]core.Event
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]core.Event),
	}
}

// add schedules emit for e after the quiet period, replacing any pending
// event of the same ID. A pending CREATE followed by MODIFY stays a CREATE.
func (d *debouncer) add(e core.Event, emit func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if prev, ok := d.pending[e.ID]; ok {
		if prev.Type == core.EventCreate && e.Type == core.EventModify {
			e.Type = core.EventCreate
		}
		if d.timers[e.ID].Stop() {
			d.wg.Done()
		}
	}
	d.pending[e.ID] = e
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[e.ID] != t {
			d.mu.Unlock()
			return
		}
		ev := d.pending[e.ID]
		delete(d.timers, e.ID)
		delete(d.pending, e.ID)
		d.mu.Unlock()
		emit(ev)
	})
	d.timers[e.ID] = t
}

// stopAndWait rejects new events and waits up to timeout for scheduled
// ones to be emitted.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
