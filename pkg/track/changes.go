package track

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

// ErrStaleChange is returned when a change no longer matches the document.
var ErrStaleChange = errors.New("change no longer matches the document")

// Kind tells insertions from deletions.
type Kind string

const (
	KindInsertion Kind = "insertion"
	KindDeletion  Kind = "deletion"
)

func (k Kind) mark() doc.MarkType {
	if k == KindDeletion {
		return doc.MarkDeletion
	}
	return doc.MarkInsertion
}

// Change is a maximal stretch of adjacent content carrying the same tracking
// mark. Timestamps are ignored when merging; Timestamp is the latest one.
type Change struct {
	Kind      Kind   `json:"kind"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s [%d,%d) %q", c.Kind, c.From, c.To, c.Text)
}

// span is an inline token with its absolute position. A Block span is an
// inserted block boundary: the open token at To-1, plus the close token
// right before it when there is one.
type span struct {
	From  int
	To    int
	Text  string
	Marks doc.Marks
	Block bool
}

// spansBetween lists the inline content intersecting [from, to), clipped,
// and the inserted block boundaries touching it, unclipped.
func spansBetween(d *doc.Doc, from, to int) []span {
	var out []span
	acc := 0
	tokens := d.Tokens()
	for i, t := range tokens {
		size := t.Size()
		start, end := acc, acc+size
		acc = end
		if ts, ok := insertedAt(t); ok {
			if i > 0 && tokens[i-1].Kind == doc.TokenClose {
				start--
			}
			if end > from && start < to {
				marks := doc.NewMarks(doc.Mark{Type: doc.MarkInsertion, Timestamp: ts})
				out = append(out, span{From: start, To: end, Text: "\n", Marks: marks, Block: true})
			}
			continue
		}
		if !isInline(t) || end <= from || start >= to {
			continue
		}
		a, b := max(start, from), min(end, to)
		text := "\n"
		if t.Kind == doc.TokenText {
			runes := []rune(t.Text)
			text = string(runes[a-start : b-start])
		} else if t.Type != doc.TypeHardBreak {
			text = ""
		}
		out = append(out, span{From: a, To: b, Text: text, Marks: t.Marks})
	}
	return out
}

func kindOf(m doc.Marks) (Kind, int64, bool) {
	switch {
	case m.Has(doc.MarkDeletion):
		return KindDeletion, m.DeletedAt, true
	case m.Has(doc.MarkInsertion):
		return KindInsertion, m.InsertedAt, true
	}
	return "", 0, false
}

// Changes lists the tracked changes of d in document order.
func Changes(d *doc.Doc) []Change {
	var out []Change
	for _, sp := range spansBetween(d, 0, d.Size()) {
		kind, ts, ok := kindOf(sp.Marks)
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Kind == kind && out[n-1].To == sp.From {
			last := &out[n-1]
			last.To = sp.To
			last.Text += sp.Text
			last.Timestamp = max(last.Timestamp, ts)
			continue
		}
		out = append(out, Change{Kind: kind, From: sp.From, To: sp.To, Text: sp.Text, Timestamp: ts})
	}
	return out
}

// Stats summarizes the pending changes of a document.
type Stats struct {
	Insertions     int `json:"insertions"`
	Deletions      int `json:"deletions"`
	InsertedLength int `json:"inserted_length"`
	DeletedLength  int `json:"deleted_length"`
}

// Pending reports whether anything awaits review.
func (s Stats) Pending() bool { return s.Insertions+s.Deletions > 0 }

// Summarize counts the changes of d.
func Summarize(d *doc.Doc) Stats {
	var s Stats
	for _, c := range Changes(d) {
		switch c.Kind {
		case KindInsertion:
			s.Insertions++
			s.InsertedLength += c.To - c.From
		case KindDeletion:
			s.Deletions++
			s.DeletedLength += c.To - c.From
		}
	}
	return s
}

// AcceptAll builds a correction that makes every change permanent: deleted
// content goes away and insertions lose their mark. It returns nil when there
// is nothing to accept.
func (e *Engine) AcceptAll(state editor.State) *transform.Transaction {
	return e.resolve(state.Doc, 0, state.Doc.Size(), true)
}

// RejectAll builds a correction that discards every change: insertions go
// away and deletions lose their mark.
func (e *Engine) RejectAll(state editor.State) *transform.Transaction {
	return e.resolve(state.Doc, 0, state.Doc.Size(), false)
}

// Accept resolves a single change as returned by Changes.
func (e *Engine) Accept(state editor.State, c Change) (*transform.Transaction, error) {
	if err := verify(state.Doc, c); err != nil {
		return nil, err
	}
	return e.resolve(state.Doc, c.From, c.To, true), nil
}

// Reject discards a single change as returned by Changes.
func (e *Engine) Reject(state editor.State, c Change) (*transform.Transaction, error) {
	if err := verify(state.Doc, c); err != nil {
		return nil, err
	}
	return e.resolve(state.Doc, c.From, c.To, false), nil
}

func verify(d *doc.Doc, c Change) error {
	if c.From < 0 || c.To > d.Size() || c.From >= c.To {
		return fmt.Errorf("%w: %v", ErrStaleChange, c)
	}
	var text strings.Builder
	for _, sp := range spansBetween(d, c.From, c.To) {
		if !sp.Marks.Has(c.Kind.mark()) {
			return fmt.Errorf("%w: %v", ErrStaleChange, c)
		}
		text.WriteString(sp.Text)
	}
	if text.String() != c.Text {
		return fmt.Errorf("%w: %v", ErrStaleChange, c)
	}
	return nil
}

// resolve walks the spans of one snapshot in reverse document order so that
// earlier positions stay valid. A span that fails to apply is skipped.
func (e *Engine) resolve(d *doc.Doc, from, to int, accept bool) *transform.Transaction {
	tr := transform.New(d).SetProvenance(transform.ProvenanceSystem).SetTime(e.clock())
	spans := spansBetween(d, from, to)
	for i := len(spans) - 1; i >= 0; i-- {
		sp := spans[i]
		if sp.Block {
			// Nested boundaries, like a split list item, settle outermost first.
			j := i
			for j > 0 && spans[j-1].Block && spans[j-1].To == spans[j].From {
				j--
			}
			for _, b := range spans[j : i+1] {
				pos := tr.Mapping().Map(b.To-1, 1)
				if err := e.resolveBlock(tr, pos, accept); err != nil {
					e.logger.Debug("tracked block skipped", "pos", pos, "accept", accept, "error", err)
				}
			}
			i = j
			continue
		}
		a, b := tr.Mapping().Map(sp.From, 1), tr.Mapping().Map(sp.To, -1)
		if a >= b {
			continue
		}
		ins, del := sp.Marks.Has(doc.MarkInsertion), sp.Marks.Has(doc.MarkDeletion)
		var err error
		switch {
		case (accept && del) || (!accept && ins):
			err = tr.Delete(a, b)
		case accept && ins:
			err = tr.RemoveMark(a, b, doc.MarkInsertion)
		case !accept && del:
			err = tr.RemoveMark(a, b, doc.MarkDeletion)
		}
		if err != nil {
			e.logger.Debug("tracked change skipped", "from", a, "to", b, "accept", accept, "error", err)
		}
	}
	if !tr.DocChanged() {
		return nil
	}
	return tr
}

// resolveBlock settles the inserted block opened at pos. Rejecting drops the
// block when it is empty and otherwise joins it to the node before it; when
// neither applies, or when accepting, only the stamp is removed.
func (e *Engine) resolveBlock(tr *transform.Transaction, pos int, accept bool) error {
	d := tr.Doc()
	n, err := d.NodeAt(pos)
	if err != nil {
		return err
	}
	if !accept {
		if n.End-n.Pos == 2 && tr.Delete(n.Pos, n.End) == nil {
			return nil
		}
		if prev, err := d.Slice(pos-1, pos); err == nil && len(prev) == 1 && prev[0].Kind == doc.TokenClose {
			if tr.Delete(pos-1, pos+1) == nil {
				return nil
			}
		}
	}
	attrs := n.Attrs.Clone()
	delete(attrs, attrInserted)
	if len(attrs) == 0 {
		attrs = nil
	}
	return tr.Step(transform.SetAttrsStep{Pos: pos, Attrs: attrs})
}
