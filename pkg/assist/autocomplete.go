package assist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

const (
	defaultDebounce       = 500 * time.Millisecond
	defaultCompleteWindow = 1000
	defaultContextWindow  = 2000
)

// Ghost is suggested text shown at Anchor. It is not part of the document.
type Ghost struct {
	Anchor int
	Text   string
}

// Autocomplete produces ghost text after the user pauses typing. At most one
// request is in flight; any document change cancels it and clears the ghost.
type Autocomplete struct {
	ed      *editor.Editor
	gen     Generator
	tracker *Tracker
	logger  *slog.Logger

	debounce time.Duration
	window   int
	model    string
	onGhost  func(Ghost)

	ctx         context.Context
	unsubscribe func()

	mu      sync.Mutex
	enabled bool
	timer   *time.Timer
	cancel  context.CancelFunc
	seq     uint64
	ghost   *Ghost
}

// AutocompleteOption configures an Autocomplete.
type AutocompleteOption func(*Autocomplete)

// WithDebounce sets the idle interval before a request is sent.
func WithDebounce(d time.Duration) AutocompleteOption {
	return func(a *Autocomplete) {
		a.debounce = d
	}
}

// WithWindow bounds how many runes before the cursor are sent.
func WithWindow(runes int) AutocompleteOption {
	return func(a *Autocomplete) {
		a.window = runes
	}
}

// WithCompletionModel picks the model for completions.
func WithCompletionModel(model string) AutocompleteOption {
	return func(a *Autocomplete) {
		a.model = model
	}
}

// WithAutocompleteLogger sets the logger.
func WithAutocompleteLogger(logger *slog.Logger) AutocompleteOption {
	return func(a *Autocomplete) {
		a.logger = logger
	}
}

// WithAutocompleteTracker reports requests to t.
func WithAutocompleteTracker(t *Tracker) AutocompleteOption {
	return func(a *Autocomplete) {
		a.tracker = t
	}
}

// OnGhost registers a callback for every ghost that is displayed.
func OnGhost(fn func(Ghost)) AutocompleteOption {
	return func(a *Autocomplete) {
		a.onGhost = fn
	}
}

// NewAutocomplete attaches to ed. Requests run under ctx; cancelling it stops
// all pending work. The coordinator starts disabled.
func NewAutocomplete(ctx context.Context, ed *editor.Editor, gen Generator, opts ...AutocompleteOption) *Autocomplete {
	a := &Autocomplete{
		ed:       ed,
		gen:      gen,
		debounce: defaultDebounce,
		window:   defaultCompleteWindow,
		ctx:      ctx,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a.unsubscribe = ed.Subscribe(a.onChange)
	return a
}

// Enabled reports whether completions are requested.
func (a *Autocomplete) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled switches completions. Disabling aborts the in-flight request
// and clears the ghost.
func (a *Autocomplete) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	if !enabled {
		a.resetLocked()
	}
}

// Ghost returns the displayed suggestion.
func (a *Autocomplete) Ghost() (Ghost, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ghost == nil {
		return Ghost{}, false
	}
	return *a.ghost, true
}

// Dismiss clears the ghost without touching the document.
func (a *Autocomplete) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ghost = nil
}

// Accept splices the ghost into the document at its anchor. It reports false
// when there was nothing to accept.
func (a *Autocomplete) Accept() (bool, error) {
	a.mu.Lock()
	g := a.ghost
	a.ghost = nil
	a.mu.Unlock()
	if g == nil {
		return false, nil
	}
	return a.ed.Update(func(s editor.State) (*transform.Transaction, error) {
		if g.Anchor > s.Doc.Size() {
			return nil, nil
		}
		tr := transform.New(s.Doc).SetProvenance(transform.ProvenanceAssist)
		if err := tr.Insert(g.Anchor, inlineText(g.Text)); err != nil {
			return nil, fmt.Errorf("failed to accept completion: %w", err)
		}
		end := tr.Mapping().Map(g.Anchor, 1)
		tr.SetSelection(transform.Cursor(end))
		return tr, nil
	})
}

// Close detaches from the editor and aborts pending work.
func (a *Autocomplete) Close() {
	a.unsubscribe()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.resetLocked()
}

func (a *Autocomplete) resetLocked() {
	a.seq++
	a.ghost = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Autocomplete) onChange(change editor.Change) {
	if !change.DocChanged() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	if !a.enabled {
		return
	}
	seq := a.seq
	a.timer = time.AfterFunc(a.debounce, func() { a.fire(seq) })
}

// fire sends the request for seq. Nothing is held when there is no request
// to send; otherwise the request context is released when it completes.
func (a *Autocomplete) fire(seq uint64) {
	state := a.ed.State()
	if !state.Selection.Empty() {
		return
	}
	anchor := state.Selection.Head
	before := tail(state.Doc.TextBetween(0, anchor, "\n"), a.window)
	req, err := ActionComplete.Request(before, tail(state.Doc.TextContent(), defaultContextWindow))
	if err != nil {
		return
	}
	req.Model = a.model

	a.mu.Lock()
	if seq != a.seq || !a.enabled {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	a.mu.Unlock()

	id := a.tracker.start(Pending{Kind: "autocomplete", Anchor: anchor, AnchorContent: tail(before, 40)})
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer cancel()
		resp, err := a.gen.Generate(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				a.tracker.finish(id, StatusDropped)
				return nil
			}
			a.tracker.finish(id, StatusFailed)
			return err
		}
		a.tracker.finish(id, a.deliver(seq, anchor, resp.Text))
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		a.logger.Debug("completion failed", "error", err)
	}))
}

// deliver shows text if nothing moved since the request was sent.
func (a *Autocomplete) deliver(seq uint64, anchor int, text string) Status {
	if text == "" {
		return StatusDropped
	}
	a.mu.Lock()
	if seq != a.seq || !a.enabled {
		a.mu.Unlock()
		return StatusDropped
	}
	if sel := a.ed.State().Selection; sel != transform.Cursor(anchor) {
		a.mu.Unlock()
		return StatusDropped
	}
	g := Ghost{Anchor: anchor, Text: text}
	a.ghost = &g
	a.cancel = nil
	a.mu.Unlock()

	if a.onGhost != nil {
		a.onGhost(g)
	}
	return StatusApplied
}
