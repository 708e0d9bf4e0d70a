package transform

import (
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/marginalia/pkg/doc"
)

// Transaction accumulates steps against a starting document. It is built
// by one goroutine and then handed to the editor for dispatch.
type Transaction struct {
	before  *doc.Doc
	doc     *doc.Doc
	steps   []Step
	docs    []*doc.Doc
	mapping Mapping

	selection    Selection
	selectionSet bool

	provenance Provenance
	time       time.Time
	meta       map[string]any
}

// New starts a user-edit transaction on d.
func New(d *doc.Doc) *Transaction {
	return &Transaction{before: d, doc: d, provenance: ProvenanceUser, time: time.Now()}
}

// Before is the document the transaction started from.
func (tr *Transaction) Before() *doc.Doc { return tr.before }

// Doc is the document after all steps so far.
func (tr *Transaction) Doc() *doc.Doc { return tr.doc }

// Steps returns the recorded steps.
func (tr *Transaction) Steps() []Step { return tr.steps }

// DocBefore returns the document step i was applied to.
func (tr *Transaction) DocBefore(i int) *doc.Doc { return tr.docs[i] }

// Mapping maps positions from Before to Doc.
func (tr *Transaction) Mapping() Mapping { return tr.mapping }

// DocChanged reports whether any step was recorded.
func (tr *Transaction) DocChanged() bool { return len(tr.steps) > 0 }

// Step applies s and records it.
func (tr *Transaction) Step(s Step) error {
	next, err := s.Apply(tr.doc)
	if err != nil {
		return fmt.Errorf("failed to apply %v: %w", s, err)
	}
	tr.docs = append(tr.docs, tr.doc)
	tr.steps = append(tr.steps, s)
	tr.mapping.Append(s.Map())
	tr.doc = next
	return nil
}

// Replace replaces [from, to) with content.
func (tr *Transaction) Replace(from, to int, content doc.Fragment) error {
	if from == to && len(content) == 0 {
		return nil
	}
	return tr.Step(ReplaceStep{From: from, To: to, Content: content})
}

// Insert inserts content at pos.
func (tr *Transaction) Insert(pos int, content doc.Fragment) error {
	return tr.Replace(pos, pos, content)
}

// InsertText inserts a text run at pos.
func (tr *Transaction) InsertText(pos int, text string, marks ...doc.Mark) error {
	return tr.Replace(pos, pos, doc.Text(text, marks...))
}

// Delete removes [from, to).
func (tr *Transaction) Delete(from, to int) error {
	return tr.Replace(from, to, nil)
}

// AddMark applies mk to [from, to).
func (tr *Transaction) AddMark(from, to int, mk doc.Mark) error {
	if from >= to {
		return nil
	}
	return tr.Step(AddMarkStep{From: from, To: to, Mark: mk})
}

// RemoveMark strips mark type t from [from, to).
func (tr *Transaction) RemoveMark(from, to int, t doc.MarkType) error {
	if from >= to {
		return nil
	}
	return tr.Step(RemoveMarkStep{From: from, To: to, Type: t})
}

// SetNodeAttrs merges attrs into the attributes of the node at pos.
func (tr *Transaction) SetNodeAttrs(pos int, attrs doc.Attrs) error {
	n, err := tr.doc.NodeAt(pos)
	if err != nil {
		return err
	}
	merged := n.Attrs.Clone()
	if merged == nil {
		merged = doc.Attrs{}
	}
	maps.Copy(merged, attrs)
	return tr.Step(SetAttrsStep{Pos: pos, Attrs: merged})
}

// SetSelection sets the selection the editor adopts after the transaction.
func (tr *Transaction) SetSelection(sel Selection) *Transaction {
	tr.selection = sel
	tr.selectionSet = true
	return tr
}

// Selection returns the explicit selection, if one was set.
func (tr *Transaction) Selection() (Selection, bool) {
	return tr.selection, tr.selectionSet
}

// SetProvenance tags the transaction.
func (tr *Transaction) SetProvenance(p Provenance) *Transaction {
	tr.provenance = p
	return tr
}

// Provenance returns the transaction tag.
func (tr *Transaction) Provenance() Provenance { return tr.provenance }

// SetTime overrides the transaction timestamp.
func (tr *Transaction) SetTime(t time.Time) *Transaction {
	tr.time = t
	return tr
}

// Time is when the transaction was created.
func (tr *Transaction) Time() time.Time { return tr.time }

// SetMeta attaches a value for plugins to read.
func (tr *Transaction) SetMeta(key string, v any) *Transaction {
	if tr.meta == nil {
		tr.meta = make(map[string]any)
	}
	tr.meta[key] = v
	return tr
}

// Meta reads a value attached with SetMeta.
func (tr *Transaction) Meta(key string) any {
	return tr.meta[key]
}
