package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/readability"
)

// issuePrompt is the rewrite instruction for one kind of readability issue.
func issuePrompt(kind readability.Kind) string {
	switch kind {
	case readability.KindVeryLongSentence:
		return "This sentence is too long and hard to follow. Rewrite it as 2-3 shorter, clearer sentences."
	case readability.KindLongSentence:
		return "This sentence is lengthy. Rewrite it to be more concise while keeping the meaning."
	case readability.KindPassiveVoice:
		return "This uses passive voice. Rewrite it in active voice to make it more direct and engaging."
	case readability.KindAdverb:
		return "This contains an adverb that may weaken the prose. Rewrite using a stronger verb instead."
	case readability.KindComplexWord:
		return "This uses a complex word. Rewrite using simpler, more accessible language."
	case readability.KindWeakTransition:
		return "This starts with a weak transition. Rewrite with a stronger logical connection or remove the transition entirely."
	}
	return "Improve this text."
}

// Suggest asks for a rewrite of the range of a readability decoration that
// fixes its issue. The proposal is applied with Apply like any other.
func (a *Assistant) Suggest(ctx context.Context, state editor.State, d readability.Decoration) (Proposal, error) {
	if d.DocFrom < 0 || d.DocFrom >= d.DocTo || d.DocTo > state.Doc.Size() {
		return Proposal{}, ErrEmptySelection
	}
	original := state.Doc.TextBetween(d.DocFrom, d.DocTo, "\n")
	req, err := ActionFixIssue.Request(original, a.surrounding(state.Doc, d.DocFrom, d.DocTo))
	if err != nil {
		return Proposal{}, err
	}
	req.Instruction = fmt.Sprintf(fixIssueInstruction, issuePrompt(d.Kind), d.Message)
	return a.propose(ctx, req, d.DocFrom, d.DocTo, original), nil
}

// Role says who wrote a chat turn.
type Role string

const (
	RoleAuthor    Role = "author"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation about a draft.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Chat continues a conversation about the draft of state. When state has a
// selection the conversation is about the selected text, and requested
// changes come back as replacement text only.
func (a *Assistant) Chat(ctx context.Context, state editor.State, history []Turn, message string) (Consultation, error) {
	if strings.TrimSpace(message) == "" {
		return Consultation{}, ErrEmptyMessage
	}
	var b strings.Builder
	for _, t := range history {
		speaker := "Author"
		if t.Role == RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", speaker, t.Text)
	}
	b.WriteString("Author: " + message)

	draft := tail(state.Doc.TextContent(), a.window*4)
	if strings.TrimSpace(draft) == "" {
		draft = "(No content yet)"
	}
	req, err := ActionChat.Request(b.String(), draft)
	if err != nil {
		return Consultation{}, err
	}
	if sel := state.Selection; !sel.Empty() {
		req.Instruction = chatSelectionInstruction + "\n\nSelected text:\n\"" + state.Doc.TextBetween(sel.From(), sel.To(), "\n") + "\""
	}
	return a.consult(ctx, req), nil
}

// FromNotes runs a notes action over scratchpad notes, with the draft of
// state as context.
func (a *Assistant) FromNotes(ctx context.Context, action Action, notes string, state editor.State) (Consultation, error) {
	switch action {
	case ActionNotesOutline, ActionNotesDraft, ActionNotesReconcile:
	default:
		return Consultation{}, fmt.Errorf("%w: %s does not work from notes", ErrWrongMode, action)
	}
	if strings.TrimSpace(notes) == "" {
		return Consultation{}, ErrNeedMoreContent
	}
	draft := tail(state.Doc.TextContent(), a.window*4)
	if action == ActionNotesReconcile && strings.TrimSpace(draft) == "" {
		draft = "(Empty document)"
	}
	req, err := action.Request(notes, draft)
	if err != nil {
		return Consultation{}, err
	}
	return a.consult(ctx, req), nil
}
