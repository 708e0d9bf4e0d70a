// Package track implements suggestion-mode editing: while enabled, inserted
// text is wrapped in an insertion mark and deleted text is put back wrapped
// in a deletion mark, so every edit stays visible until it is accepted or
// rejected.
package track

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

// Engine is the change-tracking plugin. The zero value is not usable; use New.
type Engine struct {
	mu      sync.RWMutex
	enabled bool

	clock  func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the source of mark timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithEnabled sets the initial state.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) {
		e.enabled = enabled
	}
}

// New creates a disabled engine.
func New(opts ...Option) *Engine {
	e := &Engine{clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

func (e *Engine) Name() string { return "track-changes" }

// Enabled reports whether edits are being tracked.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// SetEnabled turns tracking on or off. Existing marks are left in place.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// reacts decides which transactions are intercepted. Corrections, history
// replays and loads pass through untouched.
func reacts(p transform.Provenance) bool {
	switch p {
	case transform.ProvenanceUser, transform.ProvenanceAssist:
		return true
	case transform.ProvenanceSystem, transform.ProvenanceHistory, transform.ProvenanceLoad:
		return false
	}
	return false
}

// AppendTransaction rewrites the effect of freshly applied edits: deleted
// content is restored with a deletion mark and inserted text gains an
// insertion mark. A step whose positions can no longer be mapped is skipped.
func (e *Engine) AppendTransaction(trs []*transform.Transaction, oldState, newState editor.State) *transform.Transaction {
	if !e.Enabled() {
		return nil
	}
	now := e.clock()
	ts := now.UnixMilli()
	out := transform.New(newState.Doc).SetTime(now)

	cursor, cursorAt := -1, 0
	for k, tr := range trs {
		if !tr.DocChanged() || !reacts(tr.Provenance()) {
			continue
		}
		for i, step := range tr.Steps() {
			rs, ok := step.(transform.ReplaceStep)
			if !ok {
				continue
			}
			// through maps a position in the step's output into out.Doc().
			through := func() transform.Mapping {
				var m transform.Mapping
				m.AppendMapping(tr.Mapping().Slice(i + 1))
				for _, later := range trs[k+1:] {
					m.AppendMapping(later.Mapping())
				}
				m.AppendMapping(out.Mapping())
				return m
			}

			inserted := rs.Content.Size()
			if rs.To > rs.From {
				restore := restoreFragment(tr.DocBefore(i), rs.From, rs.To, ts)
				if len(restore) > 0 {
					r := through().MapResult(rs.From, -1)
					if r.Deleted {
						e.logger.Debug("tracked deletion skipped: anchor removed", "from", rs.From, "to", rs.To)
					} else if err := out.Insert(r.Pos, restore); err != nil {
						e.logger.Debug("tracked deletion skipped", "from", rs.From, "to", rs.To, "error", err)
					} else if inserted == 0 && k == 0 {
						cursor = r.Pos
						sel := oldState.Selection
						if sel.Empty() && sel.Head == rs.From {
							// Forward delete: keep walking forward.
							cursor += restore.Size()
						}
						cursorAt = out.Mapping().Len()
					}
				}
			}

			if inserted > 0 {
				m := through()
				start := m.MapResult(rs.From, 1)
				end := m.MapResult(rs.From+inserted, -1)
				if start.Pos >= end.Pos {
					continue
				}
				e.markInserted(out, start.Pos, end.Pos, ts)
			}
		}
	}

	if !out.DocChanged() {
		return nil
	}
	if cursor >= 0 {
		pos := out.Mapping().Slice(cursorAt).Map(cursor, -1)
		out.SetSelection(transform.Cursor(pos))
	}
	return out
}

// markInserted adds an insertion mark to inline content in [from, to),
// leaving content already marked as deleted alone. Blocks opened inside the
// range are stamped with attrInserted so the boundary can be rejected too.
func (e *Engine) markInserted(out *transform.Transaction, from, to int, ts int64) {
	for _, sp := range spansBetween(out.Doc(), from, to) {
		if sp.Block || sp.Marks.Has(doc.MarkDeletion) {
			continue
		}
		if err := out.AddMark(sp.From, sp.To, doc.Mark{Type: doc.MarkInsertion, Timestamp: ts}); err != nil {
			e.logger.Debug("tracked insertion skipped", "from", sp.From, "to", sp.To, "error", err)
		}
	}

	var opens []int
	acc := 0
	for _, t := range out.Doc().Tokens() {
		if _, marked := insertedAt(t); t.Kind == doc.TokenOpen && !marked && acc >= from && acc < to {
			opens = append(opens, acc)
		}
		acc += t.Size()
	}
	for _, pos := range opens {
		if err := out.SetNodeAttrs(pos, doc.Attrs{attrInserted: int(ts)}); err != nil {
			e.logger.Debug("tracked block skipped", "pos", pos, "error", err)
		}
	}
}

// restoreFragment computes what to put back for a deletion of [from, to):
// inserted text is dropped, text already marked as deleted is kept as is,
// other inline content gains a deletion mark and structure is kept. Inserted
// block boundaries and inserted empty blocks are dropped like inserted text.
func restoreFragment(before *doc.Doc, from, to int, ts int64) doc.Fragment {
	removed, err := before.Slice(from, to)
	if err != nil {
		return nil
	}
	var out doc.Fragment
	closed := false // out ends with the close token just before t
	for _, t := range removed {
		n := len(out)
		_, marked := insertedAt(t)
		switch {
		case marked && closed:
			out, closed = out[:n-1], false
			continue
		case t.Kind == doc.TokenClose && n > 0:
			if _, open := insertedAt(out[n-1]); open {
				out, closed = out[:n-1], false
				continue
			}
		}
		closed = t.Kind == doc.TokenClose
		if isInline(t) {
			switch {
			case t.Marks.Has(doc.MarkInsertion):
				continue
			case t.Marks.Has(doc.MarkDeletion):
			default:
				t.Marks = t.Marks.Add(doc.Mark{Type: doc.MarkDeletion, Timestamp: ts})
			}
		}
		out = append(out, t)
	}
	return out
}

// attrInserted holds the timestamp of a block opened while tracking.
const attrInserted = "insertion"

func insertedAt(t doc.Token) (int64, bool) {
	if t.Kind != doc.TokenOpen {
		return 0, false
	}
	ts, ok := t.Attrs.Int(attrInserted)
	return int64(ts), ok
}

func isInline(t doc.Token) bool {
	return t.Kind == doc.TokenText || (t.Kind == doc.TokenLeaf && t.Type.IsInline())
}

var _ editor.Appender = (*Engine)(nil)
