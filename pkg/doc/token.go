package doc

import (
	"maps"
	"reflect"
	"unicode/utf8"
)

// TokenKind distinguishes the entries of the flat token sequence.
type TokenKind uint8

const (
	TokenText TokenKind = iota
	TokenOpen
	TokenClose
	TokenLeaf
)

// Attrs holds node attributes. Attrs values are treated as immutable once
// they are part of a document; use Clone before modifying.
type Attrs map[string]any

// Clone returns a shallow copy of a.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Int returns an integer attribute, accepting the numeric types produced by
// builders and by JSON decoding.
func (a Attrs) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// String returns a string attribute.
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Bool returns a boolean attribute.
func (a Attrs) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Token is one entry of a document's flat sequence.
//
// Open and Leaf tokens carry a node type and attributes. Text tokens carry
// text and marks. Inline Leaf tokens may carry marks as well. Close tokens
// carry nothing: they end the innermost open node.
type Token struct {
	Kind  TokenKind
	Type  NodeType
	Attrs Attrs
	Text  string
	Marks Marks
}

// Size is the number of positions the token occupies.
func (t Token) Size() int {
	if t.Kind == TokenText {
		return utf8.RuneCountInString(t.Text)
	}
	return 1
}

func (t Token) equal(o Token) bool {
	if t.Kind != o.Kind || t.Type != o.Type || t.Text != o.Text || t.Marks != o.Marks {
		return false
	}
	if len(t.Attrs) == 0 && len(o.Attrs) == 0 {
		return true
	}
	return reflect.DeepEqual(t.Attrs, o.Attrs)
}

// Fragment is a token sequence used to build or splice content. A fragment
// spliced into a document must leave it balanced.
type Fragment []Token

// Size is the total number of positions in f.
func (f Fragment) Size() int {
	n := 0
	for _, t := range f {
		n += t.Size()
	}
	return n
}

// Text builds a text run. Empty strings produce an empty fragment.
func Text(s string, marks ...Mark) Fragment {
	if s == "" {
		return nil
	}
	return Fragment{{Kind: TokenText, Text: s, Marks: NewMarks(marks...)}}
}

// Block wraps content in a node of type t.
func Block(t NodeType, attrs Attrs, content ...Fragment) Fragment {
	f := Fragment{{Kind: TokenOpen, Type: t, Attrs: attrs}}
	for _, c := range content {
		f = append(f, c...)
	}
	return append(f, Token{Kind: TokenClose})
}

// Leaf builds an atom node.
func Leaf(t NodeType, attrs Attrs) Fragment {
	return Fragment{{Kind: TokenLeaf, Type: t, Attrs: attrs}}
}

// Paragraph builds a paragraph.
func Paragraph(content ...Fragment) Fragment {
	return Block(TypeParagraph, nil, content...)
}

// Heading builds a heading of the given level.
func Heading(level int, content ...Fragment) Fragment {
	return Block(TypeHeading, Attrs{"level": level}, content...)
}

func concat(parts []Fragment) []Token {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Token, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
