package doc

import "strings"

// MarkType identifies an inline formatting annotation.
type MarkType uint8

const (
	MarkBold MarkType = iota
	MarkItalic
	MarkUnderline
	MarkStrike
	MarkCode
	MarkHighlight
	MarkLink
	MarkSuperscript
	MarkSubscript
	MarkInsertion
	MarkDeletion

	markCount
)

var markNames = [markCount]string{
	"bold",
	"italic",
	"underline",
	"strike",
	"code",
	"highlight",
	"link",
	"superscript",
	"subscript",
	"insertion",
	"deletion",
}

func (t MarkType) String() string {
	if t < markCount {
		return markNames[t]
	}
	return "unknown"
}

// ParseMarkType resolves a mark name as used by the JSON tree.
func ParseMarkType(name string) (MarkType, bool) {
	for i, n := range markNames {
		if n == name {
			return MarkType(i), true
		}
	}
	return 0, false
}

// MarkSet is a bitset of mark types.
type MarkSet uint16

// Has reports whether t is in the set.
func (s MarkSet) Has(t MarkType) bool { return s&(1<<t) != 0 }

// With returns the set with t added.
func (s MarkSet) With(t MarkType) MarkSet { return s | 1<<t }

// Without returns the set with t removed.
func (s MarkSet) Without(t MarkType) MarkSet { return s &^ (1 << t) }

// Mark is a single annotation as applied by a step.
// Timestamp is used by insertion and deletion marks (unix milliseconds).
type Mark struct {
	Type      MarkType
	Href      string
	Color     string
	Timestamp int64
}

// Marks is the full set of annotations on a text run. It is comparable:
// two runs with equal Marks merge into one.
type Marks struct {
	Set        MarkSet
	Href       string
	Color      string
	InsertedAt int64
	DeletedAt  int64
}

// NewMarks builds a Marks value from individual marks.
func NewMarks(ms ...Mark) Marks {
	var m Marks
	for _, mk := range ms {
		m = m.Add(mk)
	}
	return m
}

// Has reports whether the run carries a mark of type t.
func (m Marks) Has(t MarkType) bool { return m.Set.Has(t) }

// Add returns m with mk applied. An existing mark of the same type has its
// attributes replaced.
func (m Marks) Add(mk Mark) Marks {
	m.Set = m.Set.With(mk.Type)
	switch mk.Type {
	case MarkLink:
		m.Href = mk.Href
	case MarkHighlight:
		m.Color = mk.Color
	case MarkInsertion:
		m.InsertedAt = mk.Timestamp
	case MarkDeletion:
		m.DeletedAt = mk.Timestamp
	}
	return m
}

// Remove returns m without marks of type t.
func (m Marks) Remove(t MarkType) Marks {
	m.Set = m.Set.Without(t)
	switch t {
	case MarkLink:
		m.Href = ""
	case MarkHighlight:
		m.Color = ""
	case MarkInsertion:
		m.InsertedAt = 0
	case MarkDeletion:
		m.DeletedAt = 0
	}
	return m
}

// Tracked reports whether the run carries an insertion or deletion mark.
func (m Marks) Tracked() bool {
	return m.Has(MarkInsertion) || m.Has(MarkDeletion)
}

// Untracked returns m without insertion and deletion marks.
func (m Marks) Untracked() Marks {
	return m.Remove(MarkInsertion).Remove(MarkDeletion)
}

// List expands the set into individual marks ordered by type.
func (m Marks) List() []Mark {
	var out []Mark
	for t := MarkType(0); t < markCount; t++ {
		if !m.Has(t) {
			continue
		}
		mk := Mark{Type: t}
		switch t {
		case MarkLink:
			mk.Href = m.Href
		case MarkHighlight:
			mk.Color = m.Color
		case MarkInsertion:
			mk.Timestamp = m.InsertedAt
		case MarkDeletion:
			mk.Timestamp = m.DeletedAt
		}
		out = append(out, mk)
	}
	return out
}

func (m Marks) String() string {
	names := make([]string, 0, markCount)
	for _, mk := range m.List() {
		names = append(names, mk.Type.String())
	}
	return "[" + strings.Join(names, ",") + "]"
}
