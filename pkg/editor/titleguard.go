package editor

import (
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/transform"
)

// TitleGuard rejects any transaction that removes the last heading of a
// guarded level. Level 1 is the document title; the editor also guards the
// level 3 subtitle.
type TitleGuard struct {
	levels []int
}

// NewTitleGuard guards the given heading levels, level 1 when none are given.
func NewTitleGuard(levels ...int) *TitleGuard {
	if len(levels) == 0 {
		levels = []int{1}
	}
	return &TitleGuard{levels: levels}
}

func (g *TitleGuard) Name() string { return "title-guard" }

func (g *TitleGuard) FilterTransaction(tr *transform.Transaction, _ State) bool {
	if !tr.DocChanged() || tr.Provenance() == transform.ProvenanceLoad {
		return true
	}
	for _, level := range g.levels {
		if hasHeading(tr.Before(), level) && !hasHeading(tr.Doc(), level) {
			return false
		}
	}
	return true
}

func hasHeading(d *doc.Doc, level int) bool {
	found := false
	d.Descendants(func(n doc.Node) bool {
		if n.Type == doc.TypeHeading {
			if l, ok := n.Attrs.Int("level"); ok && l == level {
				found = true
			}
		}
		return !found
	})
	return found
}

var _ Filter = (*TitleGuard)(nil)
