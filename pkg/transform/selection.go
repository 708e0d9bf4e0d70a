package transform

// Selection is an anchor/head pair. An empty selection is a cursor.
type Selection struct {
	Anchor int
	Head   int
}

// Cursor returns an empty selection at pos.
func Cursor(pos int) Selection { return Selection{Anchor: pos, Head: pos} }

// Span returns a selection from anchor to head.
func Span(anchor, head int) Selection { return Selection{Anchor: anchor, Head: head} }

// From is the lower end of the selection.
func (s Selection) From() int { return min(s.Anchor, s.Head) }

// To is the upper end of the selection.
func (s Selection) To() int { return max(s.Anchor, s.Head) }

// Empty reports whether the selection is a cursor.
func (s Selection) Empty() bool { return s.Anchor == s.Head }

// Map maps both ends through m.
func (s Selection) Map(m Mapping) Selection {
	return Selection{Anchor: m.Map(s.Anchor, 1), Head: m.Map(s.Head, 1)}
}

// Clamp limits both ends to [0, size].
func (s Selection) Clamp(size int) Selection {
	clamp := func(p int) int { return min(max(p, 0), size) }
	return Selection{Anchor: clamp(s.Anchor), Head: clamp(s.Head)}
}
