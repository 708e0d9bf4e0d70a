// Package session runs one live editing session on a stored document. A
// session wires the editor to its engines, holds the document lease, saves
// in the background and brackets assisted edits with snapshots.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/lease"
	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/snapshot"
	"github.com/aretw0/marginalia/pkg/telemetry"
	"github.com/aretw0/marginalia/pkg/track"
	"github.com/aretw0/marginalia/pkg/transform"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNoGenerator is returned by assisted operations without a text generator.
	ErrNoGenerator = errors.New("no text generator configured")
	// ErrNoImageGenerator is returned by InsertGenerated without an image generator.
	ErrNoImageGenerator = errors.New("no image generator configured")
)

// Session is one writer's view of one document.
type Session struct {
	id      string
	docID   string
	svc     *core.Service
	logger  *slog.Logger
	clock   func() time.Time
	metrics *telemetry.Metrics

	ed           *editor.Editor
	tracker      *track.Engine
	readability  *readability.Plugin
	pending      *assist.Tracker
	assistant    *assist.Assistant
	autocomplete *assist.Autocomplete
	placeholders *assist.Placeholders
	snapshots    *snapshot.Service
	keeper       *lease.Keeper

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	opened      atomic.Bool

	mu            sync.Mutex
	features      Features
	closed        bool
	autosaveDelay time.Duration
	saveTimer     *time.Timer
	lastSaved     []byte
	savedAt       time.Time
	saveErr       error

	saveMu sync.Mutex
}

// Open loads docID from svc and acquires its lease. Both happen
// concurrently; when the lease is held elsewhere the session opens
// view-only. Stores without lease support always open writable.
func Open(ctx context.Context, svc *core.Service, docID string, opts ...Option) (*Session, error) {
	if docID == "" {
		return nil, core.ErrEmptyID
	}
	o := options{autosaveDelay: DefaultAutosaveDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.holder == "" {
		o.holder = uuid.NewString()
	}

	s := &Session{
		id:            o.holder,
		docID:         docID,
		svc:           svc,
		logger:        o.logger.With("document", docID),
		clock:         o.clock,
		metrics:       o.metrics,
		autosaveDelay: o.autosaveDelay,
	}

	if store, err := svc.Leases(); err == nil {
		s.keeper = lease.NewKeeper(store, docID, o.holder,
			lease.WithTTL(o.leaseTTL),
			lease.WithClock(o.clock),
			lease.WithLogger(s.logger),
			lease.OnChange(s.leaseChanged),
		)
	} else if !errors.Is(err, core.ErrUnsupported) {
		return nil, err
	}

	var (
		loaded  *doc.Doc
		created bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loaded, created, err = s.load(gctx, o.createMissing)
		return err
	})
	if s.keeper != nil {
		g.Go(func() error {
			_, err := s.keeper.Acquire(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if s.keeper != nil {
			_ = s.keeper.Close(context.WithoutCancel(ctx))
		}
		return nil, err
	}

	rules := readability.DefaultRules()
	if o.rules != nil {
		rules = *o.rules
	}
	analyzer, err := readability.NewAnalyzer(rules)
	if err != nil {
		if s.keeper != nil {
			_ = s.keeper.Close(context.WithoutCancel(ctx))
		}
		return nil, fmt.Errorf("invalid readability rules: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.wire(o, loaded, analyzer)
	if created {
		// Nothing stored yet: the first save must write.
		s.lastSaved = nil
	}
	s.opened.Store(true)

	if s.keeper != nil {
		s.keeper.Start(s.ctx)
	}
	if s.snapshots != nil && o.snapshotEvery >= 0 {
		snapshot.NewScheduler(s.snapshots, s.snapshotSource, o.snapshotEvery).Start(s.ctx)
	}
	if err := s.SetFeatures(o.features); err != nil {
		s.logger.Warn("feature unavailable", "error", err)
	}

	s.logger.Info("session opened", "session", s.id, "view_only", s.ViewOnly())
	return s, nil
}

// load decodes the stored tree, falling back to importing the markdown.
// created reports that a missing document was replaced by an empty draft.
func (s *Session) load(ctx context.Context, create bool) (d *doc.Doc, created bool, err error) {
	stored, err := s.svc.GetDocument(ctx, s.docID)
	if errors.Is(err, core.ErrNotFound) && create {
		return doc.Default(), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	d, err = decode(stored, s.logger)
	return d, false, err
}

func decode(stored core.Document, logger *slog.Logger) (*doc.Doc, error) {
	if len(stored.Tree) > 0 {
		d, err := doc.ParseJSON(stored.Tree)
		if err == nil {
			return d, nil
		}
		logger.Warn("stored tree unreadable, importing markdown", "error", err)
	}
	if stored.Markdown == "" {
		return doc.Default(), nil
	}
	return doc.FromMarkdown(stored.Markdown)
}

func (s *Session) wire(o options, d *doc.Doc, analyzer *readability.Analyzer) {
	levels := []int{1}
	if o.guardSubtitle {
		levels = append(levels, 3)
	}
	s.tracker = track.New(track.WithClock(o.clock), track.WithLogger(s.logger))
	s.readability = readability.NewPlugin(analyzer, readability.WithLogger(s.logger))
	plugins := []editor.Plugin{editor.NewTitleGuard(levels...), s.tracker, s.readability}
	if s.metrics != nil {
		plugins = append(plugins, s.metrics.Plugin())
	}
	s.ed = editor.New(d, editor.WithPlugins(plugins...), editor.WithLogger(s.logger), editor.WithClock(o.clock))

	var onDone func(string, assist.Status, time.Duration)
	if s.metrics != nil {
		onDone = s.metrics.ObserveGeneration
	}
	s.pending = assist.NewTracker(onDone)

	if o.generator != nil {
		s.assistant = assist.NewAssistant(o.generator,
			assist.WithModel(o.model),
			assist.WithTracker(s.pending),
			assist.WithLogger(s.logger),
		)
		copts := append([]assist.AutocompleteOption{
			assist.WithCompletionModel(o.model),
			assist.WithAutocompleteTracker(s.pending),
			assist.WithAutocompleteLogger(s.logger),
		}, o.completionOpts...)
		s.autocomplete = assist.NewAutocomplete(s.ctx, s.ed, o.generator, copts...)
	}
	if o.images != nil {
		s.placeholders = assist.NewPlaceholders(s.ed, o.images, s.pending, s.logger)
	}

	if store, err := s.svc.Snapshots(); err == nil {
		sopts := []snapshot.Option{snapshot.WithClock(o.clock), snapshot.WithLogger(s.logger)}
		if o.snapshotLimit > 0 {
			sopts = append(sopts, snapshot.WithLimit(o.snapshotLimit))
		}
		if s.metrics != nil {
			sopts = append(sopts, snapshot.OnTaken(s.metrics.ObserveSnapshot))
		}
		s.snapshots = snapshot.New(store, sopts...)
	}

	s.lastSaved, _ = json.Marshal(d)
	s.unsubscribe = s.ed.Subscribe(s.changed)
}

// ID returns the session identity, which is also its lease holder name.
func (s *Session) ID() string { return s.id }

// DocumentID returns the document being edited.
func (s *Session) DocumentID() string { return s.docID }

// Editor returns the underlying editor.
func (s *Session) Editor() *editor.Editor { return s.ed }

// Doc returns the current document.
func (s *Session) Doc() *doc.Doc { return s.ed.State().Doc }

// ViewOnly reports whether another session holds the lease.
func (s *Session) ViewOnly() bool {
	return s.keeper != nil && !s.keeper.Held()
}

// Lease returns the lease as last observed, possibly held by another
// session.
func (s *Session) Lease() (core.Lease, bool) {
	if s.keeper == nil {
		return core.Lease{}, false
	}
	return s.keeper.Lease(), true
}

func (s *Session) leaseChanged(held bool, l core.Lease) {
	if !s.opened.Load() {
		return
	}
	if !held {
		s.logger.Warn("lease lost, session is view-only", "holder", l.Holder)
		return
	}
	// The previous holder may have saved since we loaded.
	if err := s.Reload(s.ctx); err != nil {
		s.logger.Warn("reload after lease gain failed", "error", err)
	}
}

// Reload replaces the editor content with the stored document.
func (s *Session) Reload(ctx context.Context) error {
	d, _, err := s.load(ctx, false)
	if err != nil {
		return err
	}
	if err := s.ed.SetContent(d); err != nil {
		return err
	}
	tree, _ := json.Marshal(s.ed.State().Doc)
	s.mu.Lock()
	s.lastSaved = tree
	s.mu.Unlock()
	return nil
}

// Update builds and dispatches a transaction against the current state. It
// reports false when a filter rejected it. Document edits fail with
// core.ErrNotLeaseHolder in a view-only session.
func (s *Session) Update(fn func(editor.State) (*transform.Transaction, error)) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	built := false
	applied, err := s.ed.Update(func(st editor.State) (*transform.Transaction, error) {
		tr, err := fn(st)
		if err != nil || tr == nil {
			return nil, err
		}
		if tr.DocChanged() && s.ViewOnly() {
			return nil, core.ErrNotLeaseHolder
		}
		built = true
		return tr, nil
	})
	if built && err == nil && s.metrics != nil {
		s.metrics.ObserveDispatch(applied)
	}
	return applied, err
}

// Dispatch applies tr.
func (s *Session) Dispatch(tr *transform.Transaction) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	if tr.DocChanged() && s.ViewOnly() {
		return false, core.ErrNotLeaseHolder
	}
	applied, err := s.ed.Dispatch(tr)
	if err == nil && s.metrics != nil {
		s.metrics.ObserveDispatch(applied)
	}
	return applied, err
}

// Decorations returns the readability decorations of the current revision.
func (s *Session) Decorations() readability.DecorationSet {
	return s.readability.Decorations()
}

// Pending lists the generation requests in flight.
func (s *Session) Pending() []assist.Pending {
	return s.pending.Pending()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) snapshotSource() (string, *doc.Doc, bool) {
	if s.ViewOnly() || s.isClosed() {
		return "", nil, false
	}
	return s.docID, s.ed.State().Doc, true
}

// Close flushes unsaved work, stops background work and releases the lease.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.mu.Unlock()

	s.unsubscribe()
	if s.autocomplete != nil {
		s.autocomplete.Close()
	}

	var errs []error
	if !s.ViewOnly() {
		if err := s.save(ctx, "close"); err != nil {
			errs = append(errs, fmt.Errorf("final save: %w", err))
		}
	}
	s.cancel()
	if s.keeper != nil {
		if err := s.keeper.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release lease: %w", err))
		}
	}
	if s.snapshots != nil {
		s.snapshots.Forget(s.docID)
	}
	s.logger.Info("session closed", "session", s.id)
	return errors.Join(errs...)
}
