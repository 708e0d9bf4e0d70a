package editor

import "errors"

var (
	// ErrStaleTransaction is returned when a transaction was built against a
	// document that is no longer current.
	ErrStaleTransaction = errors.New("transaction was built against a stale document")
	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned when the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")
)
