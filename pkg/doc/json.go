package doc

import (
	"encoding/json"
	"fmt"
	"math"
)

const typeDoc = "doc"
const typeText = "text"

// jsonNode is the structured tree format used for persistence and restore
// points: {"type":"doc","content":[...]}.
type jsonNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*jsonNode    `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []jsonMark     `json:"marks,omitempty"`
}

type jsonMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// MarshalJSON encodes the document as a JSON tree.
func (d *Doc) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.tree())
}

// UnmarshalJSON decodes a JSON tree into d.
func (d *Doc) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// ParseJSON decodes a JSON tree.
func ParseJSON(data []byte) (*Doc, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode document tree: %w", err)
	}
	if root.Type != typeDoc {
		return nil, fmt.Errorf("%w: root must be %q, got %q", ErrInvalidStructure, typeDoc, root.Type)
	}
	var tokens []Token
	for _, c := range root.Content {
		var err error
		tokens, err = flatten(tokens, c)
		if err != nil {
			return nil, err
		}
	}
	return fromTokens(tokens)
}

func flatten(out []Token, n *jsonNode) ([]Token, error) {
	if n == nil {
		return out, nil
	}
	if n.Type == typeText {
		marks, err := decodeMarks(n.Marks)
		if err != nil {
			return nil, err
		}
		return append(out, Token{Kind: TokenText, Text: n.Text, Marks: marks}), nil
	}
	typ := NodeType(n.Type)
	k, ok := typ.Kind()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, n.Type)
	}
	attrs := normalizeAttrs(n.Attrs)
	if k == KindBlockAtom || k == KindInlineAtom {
		marks, err := decodeMarks(n.Marks)
		if err != nil {
			return nil, err
		}
		return append(out, Token{Kind: TokenLeaf, Type: typ, Attrs: attrs, Marks: marks}), nil
	}
	out = append(out, Token{Kind: TokenOpen, Type: typ, Attrs: attrs})
	for _, c := range n.Content {
		var err error
		out, err = flatten(out, c)
		if err != nil {
			return nil, err
		}
	}
	return append(out, Token{Kind: TokenClose}), nil
}

// normalizeAttrs turns integral JSON numbers back into ints so decoded
// documents compare equal to built ones.
func normalizeAttrs(in map[string]any) Attrs {
	if len(in) == 0 {
		return nil
	}
	out := make(Attrs, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[k] = int(f)
			continue
		}
		out[k] = v
	}
	return out
}

func decodeMarks(in []jsonMark) (Marks, error) {
	var m Marks
	for _, jm := range in {
		t, ok := ParseMarkType(jm.Type)
		if !ok {
			return Marks{}, fmt.Errorf("%w: mark %q", ErrUnknownNodeType, jm.Type)
		}
		mk := Mark{Type: t}
		if href, ok := jm.Attrs["href"].(string); ok {
			mk.Href = href
		}
		if color, ok := jm.Attrs["color"].(string); ok {
			mk.Color = color
		}
		if ts, ok := jm.Attrs["timestamp"].(float64); ok {
			mk.Timestamp = int64(ts)
		}
		m = m.Add(mk)
	}
	return m, nil
}

func encodeMarks(m Marks) []jsonMark {
	list := m.List()
	if len(list) == 0 {
		return nil
	}
	out := make([]jsonMark, 0, len(list))
	for _, mk := range list {
		jm := jsonMark{Type: mk.Type.String()}
		switch mk.Type {
		case MarkLink:
			jm.Attrs = map[string]any{"href": mk.Href}
		case MarkHighlight:
			if mk.Color != "" {
				jm.Attrs = map[string]any{"color": mk.Color}
			}
		case MarkInsertion, MarkDeletion:
			jm.Attrs = map[string]any{"timestamp": mk.Timestamp}
		}
		out = append(out, jm)
	}
	return out
}

func (d *Doc) tree() *jsonNode {
	root := &jsonNode{Type: typeDoc}
	stack := []*jsonNode{root}
	for _, t := range d.tokens {
		parent := stack[len(stack)-1]
		switch t.Kind {
		case TokenText:
			parent.Content = append(parent.Content, &jsonNode{Type: typeText, Text: t.Text, Marks: encodeMarks(t.Marks)})
		case TokenLeaf:
			parent.Content = append(parent.Content, &jsonNode{Type: string(t.Type), Attrs: t.Attrs, Marks: encodeMarks(t.Marks)})
		case TokenOpen:
			n := &jsonNode{Type: string(t.Type), Attrs: t.Attrs}
			parent.Content = append(parent.Content, n)
			stack = append(stack, n)
		case TokenClose:
			stack = stack[:len(stack)-1]
		}
	}
	return root
}
