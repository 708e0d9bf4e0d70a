package session

import (
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/marginalia/pkg/track"
)

// SessionState exposes internal state for observability.
type SessionState struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	ViewOnly    bool        `json:"view_only"`
	LeaseHolder string      `json:"lease_holder,omitempty"`
	Features    Features    `json:"features"`
	Revision    uint64      `json:"revision"`
	Dirty       bool        `json:"dirty"`
	SavedAt     time.Time   `json:"saved_at"`
	SaveError   string      `json:"save_error,omitempty"`
	Pending     int         `json:"pending"`
	Tracked     track.Stats `json:"tracked"`
	Closed      bool        `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	st := s.ed.State()
	out := SessionState{
		ID:         s.id,
		DocumentID: s.docID,
		ViewOnly:   s.ViewOnly(),
		Revision:   st.Revision,
		Dirty:      s.Dirty(),
		Pending:    len(s.pending.Pending()),
		Tracked:    track.Summarize(st.Doc),
	}
	if l, ok := s.Lease(); ok {
		out.LeaseHolder = l.Holder
	}
	s.mu.Lock()
	out.Features = s.features
	out.SavedAt = s.savedAt
	if s.saveErr != nil {
		out.SaveError = s.saveErr.Error()
	}
	out.Closed = s.closed
	s.mu.Unlock()
	return out
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)
