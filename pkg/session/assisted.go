package session

import (
	"context"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/snapshot"
	"github.com/aretw0/marginalia/pkg/transform"
)

// Propose asks for a rewrite of the current selection.
func (s *Session) Propose(ctx context.Context, action assist.Action) (assist.Proposal, error) {
	if s.assistant == nil {
		return assist.Proposal{}, ErrNoGenerator
	}
	return s.assistant.Propose(ctx, action, s.ed.State())
}

// ApplyProposal replaces the proposal's range with its text. The document
// is snapshotted before and after the edit; prompt labels the second
// snapshot and defaults to the action name. It reports false when the
// proposal went stale or was filtered.
func (s *Session) ApplyProposal(ctx context.Context, p assist.Proposal, prompt string) (bool, error) {
	if s.assistant == nil {
		return false, ErrNoGenerator
	}
	if s.ViewOnly() {
		return false, core.ErrNotLeaseHolder
	}
	if prompt == "" {
		prompt = p.Action.String()
	}
	s.bracket(ctx, core.TriggerAIBefore, "")
	applied, err := s.Update(func(st editor.State) (*transform.Transaction, error) {
		return s.assistant.Apply(st, p)
	})
	if err != nil || !applied {
		return applied, err
	}
	s.bracket(ctx, core.TriggerAIAfter, snapshot.Label(core.TriggerAIAfter, prompt))
	return true, nil
}

// bracket takes a best-effort snapshot around an assisted edit.
func (s *Session) bracket(ctx context.Context, trigger core.Trigger, label string) {
	if s.snapshots == nil {
		return
	}
	if _, _, err := s.snapshots.Take(ctx, s.docID, s.ed.State().Doc, trigger, label); err != nil {
		s.logger.Warn("snapshot failed", "trigger", trigger, "error", err)
	}
}

// Consult asks for advice about the whole draft.
func (s *Session) Consult(ctx context.Context, action assist.Action) (assist.Consultation, error) {
	if s.assistant == nil {
		return assist.Consultation{}, ErrNoGenerator
	}
	return s.assistant.Consult(ctx, action, s.ed.State())
}

// Suggest asks for a rewrite fixing one readability decoration. The
// proposal goes through ApplyProposal like a selection rewrite.
func (s *Session) Suggest(ctx context.Context, d readability.Decoration) (assist.Proposal, error) {
	if s.assistant == nil {
		return assist.Proposal{}, ErrNoGenerator
	}
	return s.assistant.Suggest(ctx, s.ed.State(), d)
}

// Chat continues a conversation about the draft, or about the selection
// when there is one.
func (s *Session) Chat(ctx context.Context, history []assist.Turn, message string) (assist.Consultation, error) {
	if s.assistant == nil {
		return assist.Consultation{}, ErrNoGenerator
	}
	return s.assistant.Chat(ctx, s.ed.State(), history, message)
}

// FromNotes turns scratchpad notes into an outline or a draft, or compares
// them with the document.
func (s *Session) FromNotes(ctx context.Context, action assist.Action, notes string) (assist.Consultation, error) {
	if s.assistant == nil {
		return assist.Consultation{}, ErrNoGenerator
	}
	return s.assistant.FromNotes(ctx, action, notes, s.ed.State())
}

// FactCheck reviews the claims of the draft.
func (s *Session) FactCheck(ctx context.Context) (assist.FactCheck, error) {
	if s.assistant == nil {
		return assist.FactCheck{}, ErrNoGenerator
	}
	return s.assistant.FactCheck(ctx, s.ed.State())
}

// InsertGenerated places a placeholder for an image or diagram after the
// cursor's block. The result fills it in when it arrives, unless the
// placeholder was removed meanwhile. Generation is cancelled on Close.
func (s *Session) InsertGenerated(kind assist.ImageKind, prompt string) (assist.Key, error) {
	if s.placeholders == nil {
		return assist.Key{}, ErrNoImageGenerator
	}
	if s.isClosed() {
		return assist.Key{}, ErrClosed
	}
	return s.placeholders.Insert(s.ctx, kind, prompt)
}

// Ghost returns the autocomplete suggestion on display.
func (s *Session) Ghost() (assist.Ghost, bool) {
	if s.autocomplete == nil {
		return assist.Ghost{}, false
	}
	return s.autocomplete.Ghost()
}

// AcceptGhost inserts the displayed suggestion.
func (s *Session) AcceptGhost() (bool, error) {
	if s.autocomplete == nil {
		return false, nil
	}
	return s.autocomplete.Accept()
}

// DismissGhost hides the displayed suggestion.
func (s *Session) DismissGhost() {
	if s.autocomplete != nil {
		s.autocomplete.Dismiss()
	}
}
