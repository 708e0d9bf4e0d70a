package doc

import (
	"fmt"
	"unicode/utf8"
)

// Doc is an immutable document. Every edit returns a new Doc.
type Doc struct {
	tokens []Token
	size   int
}

// New builds a document from block fragments.
func New(content ...Fragment) (*Doc, error) {
	return fromTokens(concat(content))
}

// MustNew is like New but panics on invalid content. Intended for tests and
// static defaults.
func MustNew(content ...Fragment) *Doc {
	d, err := New(content...)
	if err != nil {
		panic(err)
	}
	return d
}

// Default returns the initial document of a new draft: an empty title, an
// empty subtitle and an empty body paragraph.
func Default() *Doc {
	return MustNew(Heading(1), Heading(3), Paragraph())
}

func fromTokens(tokens []Token) (*Doc, error) {
	tokens = normalize(tokens)
	if err := validate(tokens); err != nil {
		return nil, err
	}
	size := 0
	for _, t := range tokens {
		size += t.Size()
	}
	return &Doc{tokens: tokens, size: size}, nil
}

// Size is the number of positions in the document. Valid positions are
// 0..Size inclusive.
func (d *Doc) Size() int { return d.size }

// Tokens returns a copy of the token sequence.
func (d *Doc) Tokens() Fragment {
	out := make(Fragment, len(d.tokens))
	copy(out, d.tokens)
	return out
}

// Equal reports whether two documents have identical content and marks.
func (d *Doc) Equal(o *Doc) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || d.size != o.size || len(d.tokens) != len(o.tokens) {
		return false
	}
	for i := range d.tokens {
		if !d.tokens[i].equal(o.tokens[i]) {
			return false
		}
	}
	return true
}

func (d *Doc) checkRange(from, to int) error {
	if from < 0 || to > d.size || from > to {
		return fmt.Errorf("%w: [%d, %d) in document of size %d", ErrOutOfRange, from, to, d.size)
	}
	return nil
}

// Slice returns a copy of the tokens between from and to. The result may be
// unbalanced when the range crosses node boundaries.
func (d *Doc) Slice(from, to int) (Fragment, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	_, mid, _ := d.cut(from, to)
	return mid, nil
}

// Replace swaps the range [from, to) for content and returns the resulting
// document. The result must be structurally valid.
func (d *Doc) Replace(from, to int, content Fragment) (*Doc, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	left, _, right := d.cut(from, to)
	out := make([]Token, 0, len(left)+len(content)+len(right))
	out = append(out, left...)
	out = append(out, content...)
	out = append(out, right...)
	return fromTokens(out)
}

// AddMark applies mk to every text run and inline atom in [from, to).
func (d *Doc) AddMark(from, to int, mk Mark) (*Doc, error) {
	return d.mapInline(from, to, func(m Marks) Marks { return m.Add(mk) })
}

// RemoveMark strips marks of type t from [from, to).
func (d *Doc) RemoveMark(from, to int, t MarkType) (*Doc, error) {
	return d.mapInline(from, to, func(m Marks) Marks { return m.Remove(t) })
}

func (d *Doc) mapInline(from, to int, fn func(Marks) Marks) (*Doc, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	left, mid, right := d.cut(from, to)
	for i, t := range mid {
		if t.Kind == TokenText || (t.Kind == TokenLeaf && t.Type.IsInline()) {
			mid[i].Marks = fn(t.Marks)
		}
	}
	out := make([]Token, 0, len(d.tokens)+2)
	out = append(out, left...)
	out = append(out, mid...)
	out = append(out, right...)
	return fromTokens(out)
}

// SetAttrs replaces the attributes of the node starting at pos.
func (d *Doc) SetAttrs(pos int, attrs Attrs) (*Doc, error) {
	idx, off, err := d.locate(pos)
	if err != nil {
		return nil, err
	}
	if off != 0 || idx >= len(d.tokens) || (d.tokens[idx].Kind != TokenOpen && d.tokens[idx].Kind != TokenLeaf) {
		return nil, fmt.Errorf("%w: %d", ErrNoNode, pos)
	}
	out := make([]Token, len(d.tokens))
	copy(out, d.tokens)
	out[idx].Attrs = attrs
	return &Doc{tokens: out, size: d.size}, nil
}

// locate returns the index of the token containing pos and the offset of pos
// within it. A position on a token boundary has offset zero; the end of the
// document yields len(tokens).
func (d *Doc) locate(pos int) (int, int, error) {
	if pos < 0 || pos > d.size {
		return 0, 0, fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	acc := 0
	for i, t := range d.tokens {
		if pos == acc {
			return i, 0, nil
		}
		s := t.Size()
		if pos < acc+s {
			return i, pos - acc, nil
		}
		acc += s
	}
	return len(d.tokens), 0, nil
}

// cut splits the sequence into the parts before, inside and after [from, to),
// splitting text runs that straddle a boundary.
func (d *Doc) cut(from, to int) (left, mid, right []Token) {
	acc := 0
	for _, t := range d.tokens {
		s := t.Size()
		start, end := acc, acc+s
		acc = end
		switch {
		case end <= from:
			left = append(left, t)
		case start >= to:
			right = append(right, t)
		case t.Kind != TokenText:
			mid = append(mid, t)
		default:
			runes := []rune(t.Text)
			a, b := max(from-start, 0), min(to-start, s)
			if a > 0 {
				left = append(left, Token{Kind: TokenText, Text: string(runes[:a]), Marks: t.Marks})
			}
			mid = append(mid, Token{Kind: TokenText, Text: string(runes[a:b]), Marks: t.Marks})
			if b < s {
				right = append(right, Token{Kind: TokenText, Text: string(runes[b:]), Marks: t.Marks})
			}
		}
	}
	return left, mid, right
}

// normalize drops empty runs and merges adjacent runs with equal marks.
func normalize(tokens []Token) []Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Kind == TokenText {
			if t.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Kind == TokenText && out[n-1].Marks == t.Marks {
				out[n-1].Text += t.Text
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func validate(tokens []Token) error {
	var stack []NodeType
	blocks := 0
	inTextblock := func() bool {
		return len(stack) > 0 && stack[len(stack)-1].IsTextblock()
	}
	for i, t := range tokens {
		switch t.Kind {
		case TokenText:
			if !inTextblock() {
				return fmt.Errorf("%w: text outside a textblock at token %d", ErrInvalidStructure, i)
			}
			if !utf8.ValidString(t.Text) {
				return fmt.Errorf("%w: invalid UTF-8 at token %d", ErrInvalidStructure, i)
			}
		case TokenOpen:
			k, ok := t.Type.Kind()
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownNodeType, t.Type)
			}
			if k != KindContainer && k != KindTextblock {
				return fmt.Errorf("%w: atom %q used as an open node", ErrInvalidStructure, t.Type)
			}
			if inTextblock() {
				return fmt.Errorf("%w: block %q inside a textblock", ErrInvalidStructure, t.Type)
			}
			if len(stack) == 0 {
				blocks++
			}
			stack = append(stack, t.Type)
		case TokenClose:
			if len(stack) == 0 {
				return fmt.Errorf("%w: unmatched close at token %d", ErrInvalidStructure, i)
			}
			stack = stack[:len(stack)-1]
		case TokenLeaf:
			k, ok := t.Type.Kind()
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownNodeType, t.Type)
			}
			switch k {
			case KindInlineAtom:
				if !inTextblock() {
					return fmt.Errorf("%w: inline %q outside a textblock", ErrInvalidStructure, t.Type)
				}
			case KindBlockAtom:
				if inTextblock() {
					return fmt.Errorf("%w: block %q inside a textblock", ErrInvalidStructure, t.Type)
				}
				if len(stack) == 0 {
					blocks++
				}
			default:
				return fmt.Errorf("%w: %q used as a leaf", ErrInvalidStructure, t.Type)
			}
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%w: %d unclosed nodes", ErrInvalidStructure, len(stack))
	}
	if blocks == 0 {
		return ErrEmptyDocument
	}
	return nil
}
