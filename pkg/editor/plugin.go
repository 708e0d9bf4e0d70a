package editor

import (
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/transform"
)

// State is the editor state at one revision.
type State struct {
	Doc       *doc.Doc
	Selection transform.Selection
	// Revision increases with every committed document change.
	Revision uint64
}

// Plugin is anything registered with the editor. Behaviour is attached by
// implementing Filter, Appender or Observer.
type Plugin interface {
	Name() string
}

// Filter can veto a transaction before it is applied. Rejected
// transactions are dropped silently.
type Filter interface {
	Plugin
	FilterTransaction(tr *transform.Transaction, state State) bool
}

// Appender reacts to applied transactions by returning a follow-up
// transaction built against newState, or nil. Appended transactions go
// through the same filter and apply path and are tagged
// ProvenanceSystem.
type Appender interface {
	Plugin
	AppendTransaction(trs []*transform.Transaction, oldState, newState State) *transform.Transaction
}

// Observer is notified after each transaction is committed. It runs while
// the editor is locked and must not call back into the editor.
type Observer interface {
	Plugin
	Applied(tr *transform.Transaction, oldState, newState State)
}

// Change is delivered to subscribers after a dispatch completes.
type Change struct {
	Transactions []*transform.Transaction
	Old          State
	New          State
}

// DocChanged reports whether any transaction of the change edited the
// document.
func (c Change) DocChanged() bool {
	for _, tr := range c.Transactions {
		if tr.DocChanged() {
			return true
		}
	}
	return false
}
