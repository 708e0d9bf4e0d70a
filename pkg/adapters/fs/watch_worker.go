package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/marginalia/pkg/core"
)

const debounceDelay = 50 * time.Millisecond

type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	pattern   string
	events    chan core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	known     map[string]bool // document IDs present on disk
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository, pattern string, events chan core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		pattern:    pattern,
		events:     events,
		known:      make(map[string]bool),
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.repo.recursiveAdd(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	// Git holds .git/index.lock while it rewrites the tree.
	_ = watcher.Add(filepath.Join(w.repo.Path, ".git"))

	_ = w.repo.walkDocuments(func(_, id string, _ os.FileInfo) error {
		w.known[id] = true
		return nil
	})

	w.watcher = watcher
	w.debouncer = newDebouncer(debounceDelay)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// handleGitLockEvent processes .git/index.lock events (git operations pause/resume).
// Returns true if event was handled, false if should continue processing.
func (w *watchWorker) handleGitLockEvent(event fsnotify.Event, gitLocked bool) (handled bool, gitLockedNew bool) {
	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false, gitLocked
	}
	switch {
	case event.Has(fsnotify.Create):
		w.repo.logger.Debug("git operations detected, pausing watcher")
		return true, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.repo.logger.Debug("git operations finished, reconciling")
		return true, false
	}
	return true, gitLocked
}

// reconcileAfterGitUnlock emits the changes missed while git held its lock.
func (w *watchWorker) reconcileAfterGitUnlock(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		reconciled, err := w.repo.Reconcile(ctx)
		if err != nil {
			w.repo.logger.Error("reconcile failed", "error", err)
			return err
		}
		for _, e := range reconciled {
			if w.matches(e.ID) {
				w.sendEvent(ctx, e, "reconciliation")
			}
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.report(fmt.Errorf("reconcile: %w", err))
	}))
}

func (w *watchWorker) matches(id string) bool {
	return !w.repo.shouldIgnore(fsnotify.Event{Name: filepath.Join(w.repo.Path, filepath.FromSlash(id)+docExt)}, w.pattern)
}

func (w *watchWorker) report(err error) {
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
		return
	}
	w.repo.logger.Error("watcher error", "error", err)
}

// processFilesystemEvent handles filtering, mapping, and debouncing of filesystem events.
// Returns true if event was processed, false if should be ignored.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) (processed bool) {
	w.repo.logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.repo.recursiveAdd(w.watcher); err != nil {
				w.report(err)
			}
			return false
		}
	}

	if w.repo.shouldIgnore(event, w.pattern) {
		return false
	}

	eType := w.repo.mapEventType(event)
	if eType == "" {
		return false
	}

	id, err := w.repo.resolveID(event.Name)
	if err != nil {
		w.repo.logger.Debug("resolveID failed", "path", event.Name, "err", err)
		return false
	}

	// Atomic saves arrive as a create of the target; a known ID was modified.
	switch eType {
	case core.EventCreate:
		if w.known[id] {
			eType = core.EventModify
		}
		w.known[id] = true
	case core.EventDelete:
		delete(w.known, id)
	}

	w.sendEvent(ctx, core.Event{
		Type:      eType,
		ID:        id,
		Timestamp: time.Now().Unix(),
	}, "filesystem")

	return true
}

// sendEvent enqueues an event via the debouncer.
// source param is for logging/debugging (e.g., "filesystem", "reconciliation").
func (w *watchWorker) sendEvent(ctx context.Context, event core.Event, source string) {
	w.debouncer.add(event, func(e core.Event) {
		w.repo.logger.Debug("emitting event", "event", e.String(), "source", source)
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// run is the main event loop for the watcher worker. It owns the events
// channel and closes it on exit.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer close(w.events)
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)

			// Stack traces only at debug level.
			if w.repo.logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.repo.logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Wait for in-flight timers before the deferred close of the channel.
	w.debouncer.stopAndWait(5 * time.Second)

	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	var gitLocked bool
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}

			if handled, locked := w.handleGitLockEvent(event, gitLocked); handled {
				wasLocked := gitLocked
				gitLocked = locked
				if wasLocked && !gitLocked {
					w.reconcileAfterGitUnlock(ctx)
				}
				continue
			}

			if gitLocked {
				continue
			}

			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.report(wErr)
		}
	}
}
