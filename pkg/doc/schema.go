// Package doc implements the document tree model shared by every editing
// engine: an immutable, normalized sequence of tokens addressed by integer
// positions.
//
// A document is a list of block nodes. Block nodes are either containers
// (holding other blocks), textblocks (holding text runs and inline atoms) or
// block atoms (images, diagrams, rules). Each opening and closing boundary
// and each atom occupies one position; text occupies one position per rune.
//
//	<p>ab</p><hr>
//	0  12   3   4
package doc

// NodeType names a node in the tree. Values match the JSON tree format.
type NodeType string

const (
	TypeParagraph      NodeType = "paragraph"
	TypeHeading        NodeType = "heading"
	TypeBlockquote     NodeType = "blockquote"
	TypeBulletList     NodeType = "bulletList"
	TypeOrderedList    NodeType = "orderedList"
	TypeListItem       NodeType = "listItem"
	TypeTaskList       NodeType = "taskList"
	TypeTaskItem       NodeType = "taskItem"
	TypeCodeBlock      NodeType = "codeBlock"
	TypeCallout        NodeType = "callout"
	TypeTable          NodeType = "table"
	TypeTableRow       NodeType = "tableRow"
	TypeTableCell      NodeType = "tableCell"
	TypeTableHeader    NodeType = "tableHeader"
	TypeImage          NodeType = "image"
	TypeGeneratedImage NodeType = "generatedImage"
	TypeDiagram        NodeType = "diagram"
	TypeHorizontalRule NodeType = "horizontalRule"
	TypeHardBreak      NodeType = "hardBreak"
	TypeInlineImage    NodeType = "inlineImage"
)

// Kind classifies what a node type may contain.
type Kind int

const (
	KindContainer Kind = iota
	KindTextblock
	KindBlockAtom
	KindInlineAtom
)

var kinds = map[NodeType]Kind{
	TypeParagraph:      KindTextblock,
	TypeHeading:        KindTextblock,
	TypeCodeBlock:      KindTextblock,
	TypeBlockquote:     KindContainer,
	TypeBulletList:     KindContainer,
	TypeOrderedList:    KindContainer,
	TypeListItem:       KindContainer,
	TypeTaskList:       KindContainer,
	TypeTaskItem:       KindContainer,
	TypeCallout:        KindContainer,
	TypeTable:          KindContainer,
	TypeTableRow:       KindContainer,
	TypeTableCell:      KindContainer,
	TypeTableHeader:    KindContainer,
	TypeImage:          KindBlockAtom,
	TypeGeneratedImage: KindBlockAtom,
	TypeDiagram:        KindBlockAtom,
	TypeHorizontalRule: KindBlockAtom,
	TypeHardBreak:      KindInlineAtom,
	TypeInlineImage:    KindInlineAtom,
}

// Kind reports the classification of t and whether t is a known type.
func (t NodeType) Kind() (Kind, bool) {
	k, ok := kinds[t]
	return k, ok
}

// IsTextblock reports whether t holds inline content.
func (t NodeType) IsTextblock() bool {
	k, ok := kinds[t]
	return ok && k == KindTextblock
}

// IsAtom reports whether t is a leaf node of size one.
func (t NodeType) IsAtom() bool {
	k, ok := kinds[t]
	return ok && (k == KindBlockAtom || k == KindInlineAtom)
}

// IsInline reports whether t lives inside textblocks.
func (t NodeType) IsInline() bool {
	k, ok := kinds[t]
	return ok && k == KindInlineAtom
}
