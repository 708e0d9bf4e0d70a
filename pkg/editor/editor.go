// Package editor owns the single apply path of a document: every mutation,
// whether typed, generated or corrective, is dispatched as a transaction,
// filtered, applied and offered to append hooks here.
package editor

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/transform"
)

const (
	defaultHistoryDepth = 100
	maxAppendRounds     = 8

	// MetaAddToHistory set to false keeps a transaction out of undo history.
	MetaAddToHistory = "addToHistory"
)

// Editor serializes all state transitions of one document.
type Editor struct {
	mu      sync.Mutex
	state   State
	plugins []Plugin
	history *history

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int

	logger *slog.Logger
	clock  func() time.Time
}

// Option configures an Editor.
type Option func(*Editor)

// WithPlugins registers plugins in order.
func WithPlugins(plugins ...Plugin) Option {
	return func(e *Editor) {
		e.plugins = append(e.plugins, plugins...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for new transactions.
func WithClock(clock func() time.Time) Option {
	return func(e *Editor) {
		e.clock = clock
	}
}

// WithHistoryDepth bounds the undo stack. Zero keeps the default.
func WithHistoryDepth(depth int) Option {
	return func(e *Editor) {
		if depth > 0 {
			e.history.depth = depth
		}
	}
}

// New creates an editor on d with the cursor at the start of the first
// textblock.
func New(d *doc.Doc, opts ...Option) *Editor {
	e := &Editor{
		state:   State{Doc: d, Selection: transform.Cursor(firstCursor(d))},
		history: newHistory(defaultHistoryDepth),
		subs:    make(map[int]func(Change)),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

func firstCursor(d *doc.Doc) int {
	pos := 0
	d.Descendants(func(n doc.Node) bool {
		if n.Type.IsTextblock() {
			pos = n.ContentStart()
			return false
		}
		return true
	})
	return pos
}

// AddPlugin registers a plugin after construction.
func (e *Editor) AddPlugin(p Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plugins = append(e.plugins, p)
}

// State returns the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Begin starts a transaction against the current document.
func (e *Editor) Begin() *transform.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return transform.New(e.state.Doc).SetTime(e.clock())
}

// Subscribe registers fn to be called after every committed dispatch, outside
// the editor lock. The returned function unsubscribes.
func (e *Editor) Subscribe(fn func(Change)) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// Dispatch applies tr. It returns false without error when a filter rejected
// the transaction.
func (e *Editor) Dispatch(tr *transform.Transaction) (bool, error) {
	e.mu.Lock()
	change, ok, err := e.dispatchLocked(tr)
	if ok && tr.Provenance() != transform.ProvenanceHistory {
		e.record(change)
	}
	e.mu.Unlock()

	if ok {
		e.notify(change)
	}
	return ok, err
}

// Update builds a transaction from the current state and dispatches it
// atomically. fn returning a nil transaction is a no-op.
func (e *Editor) Update(fn func(State) (*transform.Transaction, error)) (bool, error) {
	e.mu.Lock()
	tr, err := fn(e.state)
	if err != nil || tr == nil {
		e.mu.Unlock()
		return false, err
	}
	change, ok, err := e.dispatchLocked(tr)
	if ok && tr.Provenance() != transform.ProvenanceHistory {
		e.record(change)
	}
	e.mu.Unlock()

	if ok {
		e.notify(change)
	}
	return ok, err
}

// SetContent replaces the whole document. History is cleared.
func (e *Editor) SetContent(d *doc.Doc) error {
	_, err := e.Update(func(s State) (*transform.Transaction, error) {
		tr := transform.New(s.Doc).SetTime(e.clock()).SetProvenance(transform.ProvenanceLoad)
		if err := tr.Replace(0, s.Doc.Size(), d.Tokens()); err != nil {
			return nil, err
		}
		tr.SetSelection(transform.Cursor(firstCursor(tr.Doc())))
		return tr, nil
	})
	return err
}

// Undo reverts the most recent change group.
func (e *Editor) Undo() error {
	return e.travel(&e.history.undo, &e.history.redo, ErrNothingToUndo)
}

// Redo reapplies the most recently undone change group.
func (e *Editor) Redo() error {
	return e.travel(&e.history.redo, &e.history.undo, ErrNothingToRedo)
}

// CanUndo reports whether an undo is available.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history.undo) > 0
}

func (e *Editor) travel(from, to *[]historyEvent, empty error) error {
	e.mu.Lock()
	ev, ok := pop(from)
	if !ok {
		e.mu.Unlock()
		return empty
	}
	tr := transform.New(e.state.Doc).SetTime(e.clock()).SetProvenance(transform.ProvenanceHistory)
	for _, s := range ev.steps {
		if err := tr.Step(s); err != nil {
			e.history.reset()
			e.mu.Unlock()
			return fmt.Errorf("failed to replay history: %w", err)
		}
	}
	tr.SetSelection(ev.selection)
	selBefore := e.state.Selection
	change, applied, err := e.dispatchLocked(tr)
	if applied {
		if inv, has, ierr := invert(change.Transactions, selBefore); ierr == nil && has {
			e.history.push(to, inv)
		}
	}
	e.mu.Unlock()

	if applied {
		e.notify(change)
	}
	return err
}

func (e *Editor) record(change Change) {
	root := change.Transactions[0]
	switch root.Provenance() {
	case transform.ProvenanceLoad:
		e.history.reset()
		return
	case transform.ProvenanceHistory:
		return
	}
	if v, ok := root.Meta(MetaAddToHistory).(bool); ok && !v {
		return
	}
	ev, has, err := invert(change.Transactions, change.Old.Selection)
	if err != nil {
		e.logger.Warn("history dropped", "error", err)
		e.history.reset()
		return
	}
	if !has {
		return
	}
	e.history.push(&e.history.undo, ev)
	e.history.redo = nil
}

func (e *Editor) notify(change Change) {
	e.subMu.Lock()
	subs := make([]func(Change), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(change)
	}
}

func (e *Editor) filter(tr *transform.Transaction, state State) bool {
	for _, p := range e.plugins {
		if f, ok := p.(Filter); ok && !f.FilterTransaction(tr, state) {
			e.logger.Debug("transaction filtered", "plugin", p.Name(), "provenance", tr.Provenance())
			return false
		}
	}
	return true
}

func (e *Editor) applyInner(state State, tr *transform.Transaction) State {
	next := State{Doc: tr.Doc(), Revision: state.Revision}
	if sel, ok := tr.Selection(); ok {
		next.Selection = sel.Clamp(tr.Doc().Size())
	} else {
		next.Selection = state.Selection.Map(tr.Mapping()).Clamp(tr.Doc().Size())
	}
	if tr.DocChanged() {
		next.Revision++
	}
	return next
}

// dispatchLocked runs the root transaction and all appended ones. e.mu must
// be held.
func (e *Editor) dispatchLocked(root *transform.Transaction) (Change, bool, error) {
	if root.Before() != e.state.Doc {
		return Change{}, false, ErrStaleTransaction
	}
	if !e.filter(root, e.state) {
		return Change{}, false, nil
	}

	old := e.state
	applied := []*transform.Transaction{root}
	states := []State{old}
	state := e.applyInner(old, root)

	type mark struct {
		n     int
		state State
	}
	seen := make([]mark, len(e.plugins))
	for i := range seen {
		seen[i] = mark{n: 0, state: old}
	}

	for range maxAppendRounds {
		haveNew := false
		for i, p := range e.plugins {
			ap, ok := p.(Appender)
			if !ok || seen[i].n >= len(applied) {
				continue
			}
			tr := ap.AppendTransaction(applied[seen[i].n:], seen[i].state, state)
			if tr != nil && tr.Before() == state.Doc && e.filter(tr, state) {
				tr.SetProvenance(transform.ProvenanceSystem)
				states = append(states, state)
				applied = append(applied, tr)
				state = e.applyInner(state, tr)
				haveNew = true
			} else if tr != nil {
				e.logger.Debug("appended transaction dropped", "plugin", p.Name())
			}
			seen[i] = mark{n: len(applied), state: state}
		}
		if !haveNew {
			break
		}
	}

	e.state = state
	for k, tr := range applied {
		before := states[k]
		after := state
		if k+1 < len(states) {
			after = states[k+1]
		}
		for _, p := range e.plugins {
			if o, ok := p.(Observer); ok {
				o.Applied(tr, before, after)
			}
		}
	}
	return Change{Transactions: applied, Old: old, New: state}, true, nil
}
