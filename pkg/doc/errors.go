package doc

import "errors"

var (
	// ErrOutOfRange is returned when a position lies outside the document.
	ErrOutOfRange = errors.New("position out of range")
	// ErrInvalidStructure is returned when an edit would break the tree shape.
	ErrInvalidStructure = errors.New("invalid document structure")
	// ErrEmptyDocument is returned when a document would contain no blocks.
	ErrEmptyDocument = errors.New("document must contain at least one block")
	// ErrUnknownNodeType is returned when decoding a node type the model does not know.
	ErrUnknownNodeType = errors.New("unknown node type")
	// ErrNoNode is returned when no node starts at the given position.
	ErrNoNode = errors.New("no node at position")
)
