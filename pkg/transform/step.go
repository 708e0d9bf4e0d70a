package transform

import (
	"fmt"

	"github.com/aretw0/marginalia/pkg/doc"
)

// Step is an atomic, invertible document edit.
type Step interface {
	// Apply returns the document with the step applied.
	Apply(d *doc.Doc) (*doc.Doc, error)
	// Map describes how positions move across the step.
	Map() StepMap
	// Invert returns the step undoing this one, given the document it was
	// applied to.
	Invert(before *doc.Doc) (Step, error)
}

// ReplaceStep replaces [From, To) with Content. It covers insertion
// (From == To) and deletion (empty Content).
type ReplaceStep struct {
	From    int
	To      int
	Content doc.Fragment
}

func (s ReplaceStep) Apply(d *doc.Doc) (*doc.Doc, error) {
	return d.Replace(s.From, s.To, s.Content)
}

func (s ReplaceStep) Map() StepMap {
	return NewStepMap(s.From, s.To-s.From, s.Content.Size())
}

func (s ReplaceStep) Invert(before *doc.Doc) (Step, error) {
	removed, err := before.Slice(s.From, s.To)
	if err != nil {
		return nil, err
	}
	return ReplaceStep{From: s.From, To: s.From + s.Content.Size(), Content: removed}, nil
}

func (s ReplaceStep) String() string {
	return fmt.Sprintf("replace(%d,%d,+%d)", s.From, s.To, s.Content.Size())
}

// AddMarkStep applies a mark to the inline content of [From, To).
type AddMarkStep struct {
	From int
	To   int
	Mark doc.Mark
}

func (s AddMarkStep) Apply(d *doc.Doc) (*doc.Doc, error) {
	return d.AddMark(s.From, s.To, s.Mark)
}

func (s AddMarkStep) Map() StepMap { return StepMap{} }

func (s AddMarkStep) Invert(before *doc.Doc) (Step, error) {
	return overlayOf(before, s.From, s.To)
}

func (s AddMarkStep) String() string {
	return fmt.Sprintf("addMark(%d,%d,%s)", s.From, s.To, s.Mark.Type)
}

// RemoveMarkStep strips a mark type from [From, To).
type RemoveMarkStep struct {
	From int
	To   int
	Type doc.MarkType
}

func (s RemoveMarkStep) Apply(d *doc.Doc) (*doc.Doc, error) {
	return d.RemoveMark(s.From, s.To, s.Type)
}

func (s RemoveMarkStep) Map() StepMap { return StepMap{} }

func (s RemoveMarkStep) Invert(before *doc.Doc) (Step, error) {
	return overlayOf(before, s.From, s.To)
}

func (s RemoveMarkStep) String() string {
	return fmt.Sprintf("removeMark(%d,%d,%s)", s.From, s.To, s.Type)
}

// SetAttrsStep replaces the attributes of the node at Pos.
type SetAttrsStep struct {
	Pos   int
	Attrs doc.Attrs
}

func (s SetAttrsStep) Apply(d *doc.Doc) (*doc.Doc, error) {
	return d.SetAttrs(s.Pos, s.Attrs)
}

func (s SetAttrsStep) Map() StepMap { return StepMap{} }

func (s SetAttrsStep) Invert(before *doc.Doc) (Step, error) {
	n, err := before.NodeAt(s.Pos)
	if err != nil {
		return nil, err
	}
	return SetAttrsStep{Pos: s.Pos, Attrs: n.Attrs}, nil
}

func (s SetAttrsStep) String() string {
	return fmt.Sprintf("setAttrs(%d)", s.Pos)
}

// OverlayStep swaps content for content of the same size, leaving positions
// untouched. It restores marks when undoing mark steps.
type OverlayStep struct {
	From    int
	Content doc.Fragment
}

func overlayOf(d *doc.Doc, from, to int) (Step, error) {
	content, err := d.Slice(from, to)
	if err != nil {
		return nil, err
	}
	return OverlayStep{From: from, Content: content}, nil
}

func (s OverlayStep) Apply(d *doc.Doc) (*doc.Doc, error) {
	return d.Replace(s.From, s.From+s.Content.Size(), s.Content)
}

func (s OverlayStep) Map() StepMap { return StepMap{} }

func (s OverlayStep) Invert(before *doc.Doc) (Step, error) {
	return overlayOf(before, s.From, s.From+s.Content.Size())
}

func (s OverlayStep) String() string {
	return fmt.Sprintf("overlay(%d,%d)", s.From, s.From+s.Content.Size())
}
