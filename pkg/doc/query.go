package doc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Run is a text run with its absolute position.
type Run struct {
	From  int
	To    int
	Text  string
	Marks Marks
}

// Runs returns every text run in document order.
func (d *Doc) Runs() []Run {
	var out []Run
	acc := 0
	for _, t := range d.tokens {
		s := t.Size()
		if t.Kind == TokenText {
			out = append(out, Run{From: acc, To: acc + s, Text: t.Text, Marks: t.Marks})
		}
		acc += s
	}
	return out
}

// RunsBetween returns the text runs intersecting [from, to), clipped to it.
func (d *Doc) RunsBetween(from, to int) []Run {
	var out []Run
	for _, r := range d.Runs() {
		if r.To <= from || r.From >= to {
			continue
		}
		a, b := max(r.From, from), min(r.To, to)
		runes := []rune(r.Text)
		out = append(out, Run{From: a, To: b, Text: string(runes[a-r.From : b-r.From]), Marks: r.Marks})
	}
	return out
}

// Node describes a non-text node found in the tree.
type Node struct {
	Type  NodeType
	Attrs Attrs
	Marks Marks
	// Pos is the position before the node, End the position after it.
	Pos   int
	End   int
	Depth int
}

// ContentStart is the first position inside the node.
func (n Node) ContentStart() int { return n.Pos + 1 }

// ContentEnd is the last position inside the node.
func (n Node) ContentEnd() int { return n.End - 1 }

// Descendants walks every non-text node in document order. Returning false
// from fn stops the walk.
func (d *Doc) Descendants(fn func(n Node) bool) {
	ends := d.closeIndex()
	var stack []int
	acc := 0
	for i, t := range d.tokens {
		s := t.Size()
		switch t.Kind {
		case TokenOpen:
			if !fn(Node{Type: t.Type, Attrs: t.Attrs, Pos: acc, End: ends[i], Depth: len(stack)}) {
				return
			}
			stack = append(stack, i)
		case TokenClose:
			stack = stack[:len(stack)-1]
		case TokenLeaf:
			if !fn(Node{Type: t.Type, Attrs: t.Attrs, Marks: t.Marks, Pos: acc, End: acc + 1, Depth: len(stack)}) {
				return
			}
		}
		acc += s
	}
}

// closeIndex maps the index of every open token to the position after its
// matching close token.
func (d *Doc) closeIndex() map[int]int {
	ends := make(map[int]int)
	var stack []int
	acc := 0
	for i, t := range d.tokens {
		acc += t.Size()
		switch t.Kind {
		case TokenOpen:
			stack = append(stack, i)
		case TokenClose:
			ends[stack[len(stack)-1]] = acc
			stack = stack[:len(stack)-1]
		}
	}
	return ends
}

// NodeAt returns the node starting at pos.
func (d *Doc) NodeAt(pos int) (Node, error) {
	var found Node
	ok := false
	d.Descendants(func(n Node) bool {
		if n.Pos == pos {
			found, ok = n, true
			return false
		}
		return n.Pos < pos
	})
	if !ok {
		return Node{}, fmt.Errorf("%w: %d", ErrNoNode, pos)
	}
	return found, nil
}

// Resolved describes the context of a position.
type Resolved struct {
	Pos   int
	Depth int
	// Parent is the innermost node containing Pos, empty at the root.
	Parent NodeType
	// Start and End delimit the parent's content.
	Start int
	End   int
}

// InTextblock reports whether the position sits inside inline content.
func (r Resolved) InTextblock() bool { return r.Parent.IsTextblock() }

// Resolve returns the context of pos.
func (d *Doc) Resolve(pos int) (Resolved, error) {
	if pos < 0 || pos > d.size {
		return Resolved{}, fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	type frame struct {
		typ   NodeType
		start int
	}
	var stack []frame
	acc, idx := 0, 0
	for ; idx < len(d.tokens); idx++ {
		t := d.tokens[idx]
		s := t.Size()
		if acc+s > pos {
			break
		}
		switch t.Kind {
		case TokenOpen:
			stack = append(stack, frame{typ: t.Type, start: acc + 1})
		case TokenClose:
			stack = stack[:len(stack)-1]
		}
		acc += s
	}
	if len(stack) == 0 {
		return Resolved{Pos: pos, Start: 0, End: d.size}, nil
	}
	top := stack[len(stack)-1]
	// Scan forward for the close of the innermost node.
	depth, end := 0, acc
	for ; idx < len(d.tokens); idx++ {
		t := d.tokens[idx]
		if t.Kind == TokenClose {
			if depth == 0 {
				break
			}
			depth--
		} else if t.Kind == TokenOpen {
			depth++
		}
		end += t.Size()
	}
	return Resolved{Pos: pos, Depth: len(stack), Parent: top.typ, Start: top.start, End: end}, nil
}

func leafText(t Token) string {
	if t.Type == TypeHardBreak {
		return "\n"
	}
	return ""
}

// TextBetween returns the text in [from, to), with blockSep written between
// the content of consecutive textblocks.
func (d *Doc) TextBetween(from, to int, blockSep string) string {
	if d.checkRange(from, to) != nil {
		return ""
	}
	_, mid, _ := d.cut(from, to)
	var b strings.Builder
	pending := false
	for _, t := range mid {
		switch t.Kind {
		case TokenClose, TokenOpen:
			if t.Kind == TokenOpen && !t.Type.IsTextblock() {
				continue
			}
			pending = b.Len() > 0
		case TokenText:
			if pending {
				b.WriteString(blockSep)
				pending = false
			}
			b.WriteString(t.Text)
		case TokenLeaf:
			if t.Type.IsInline() {
				if pending {
					b.WriteString(blockSep)
					pending = false
				}
				b.WriteString(leafText(t))
			}
		}
	}
	return b.String()
}

// TextContent returns the text of the whole document, one line per textblock.
func (d *Doc) TextContent() string {
	return d.TextBetween(0, d.size, "\n")
}

// WordCount counts whitespace-separated words.
func (d *Doc) WordCount() int {
	return len(strings.Fields(d.TextContent()))
}

// Projection is a plain-text view of a document with a table mapping every
// rune back to its document position.
type Projection struct {
	Text string
	// Pos holds the document position of each rune of Text. Block separators
	// map to the end of the preceding textblock.
	Pos []int
}

// Range converts a rune range of Text into a document range.
func (p Projection) Range(start, end int) (int, int, bool) {
	if start < 0 || end > len(p.Pos) || start >= end {
		return 0, 0, false
	}
	return p.Pos[start], p.Pos[end-1] + 1, true
}

// PlainText projects the document onto plain text, one line per textblock.
// When skipDeleted is set, runs carrying a deletion mark are left out.
func (d *Doc) PlainText(skipDeleted bool) Projection {
	var b strings.Builder
	var pos []int
	acc := 0
	started := false
	for _, t := range d.tokens {
		s := t.Size()
		switch t.Kind {
		case TokenOpen:
			if t.Type.IsTextblock() {
				if started {
					b.WriteByte('\n')
					pos = append(pos, acc)
				}
				started = true
			}
		case TokenText:
			if skipDeleted && t.Marks.Has(MarkDeletion) {
				break
			}
			b.WriteString(t.Text)
			for i := range utf8.RuneCountInString(t.Text) {
				pos = append(pos, acc+i)
			}
		case TokenLeaf:
			if t.Type.IsInline() {
				b.WriteRune('\uFFFC')
				pos = append(pos, acc)
			}
		}
		acc += s
	}
	return Projection{Text: b.String(), Pos: pos}
}

// Title returns the text of the first level 1 heading, or "".
func (d *Doc) Title() string {
	title := ""
	d.Descendants(func(n Node) bool {
		if n.Type != TypeHeading {
			return true
		}
		if l, ok := n.Attrs.Int("level"); !ok || l != 1 {
			return true
		}
		title = strings.TrimSpace(d.TextBetween(n.ContentStart(), n.ContentEnd(), " "))
		return false
	})
	return title
}
