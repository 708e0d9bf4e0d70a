package assist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

const minConsultRunes = 20

// Proposal is a rewrite of a captured range. Failed proposals carry the
// error text and cannot be applied.
type Proposal struct {
	ID       uuid.UUID `json:"id"`
	Action   Action    `json:"action"`
	From     int       `json:"from"`
	To       int       `json:"to"`
	Original string    `json:"original"`
	Text     string    `json:"text"`
	Failed   bool      `json:"failed,omitempty"`
}

// Consultation is advice about the whole draft.
type Consultation struct {
	Action Action `json:"action"`
	Text   string `json:"text"`
	Failed bool   `json:"failed,omitempty"`
}

// Assistant runs selection rewrites and draft consultations.
type Assistant struct {
	gen     Generator
	model   string
	window  int
	tracker *Tracker
	logger  *slog.Logger
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithModel sets the model identifier sent with every request.
func WithModel(model string) AssistantOption {
	return func(a *Assistant) {
		a.model = model
	}
}

// WithContextWindow bounds the document context sent with a request.
func WithContextWindow(runes int) AssistantOption {
	return func(a *Assistant) {
		a.window = runes
	}
}

// WithTracker reports requests to t.
func WithTracker(t *Tracker) AssistantOption {
	return func(a *Assistant) {
		a.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AssistantOption {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// NewAssistant creates an assistant on gen.
func NewAssistant(gen Generator, opts ...AssistantOption) *Assistant {
	a := &Assistant{gen: gen, window: defaultContextWindow}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a
}

// Propose captures the selection of state and asks for a rewrite. Service
// errors do not fail the call; they come back as a failed proposal whose
// text reads "Error: <message>".
func (a *Assistant) Propose(ctx context.Context, action Action, state editor.State) (Proposal, error) {
	mode, err := action.Mode()
	if err != nil {
		return Proposal{}, err
	}
	if mode != ModeRewrite {
		return Proposal{}, fmt.Errorf("%w: %s is not a rewrite", ErrWrongMode, action)
	}
	sel := state.Selection
	if sel.Empty() {
		return Proposal{}, ErrEmptySelection
	}
	from, to := sel.From(), sel.To()
	original := state.Doc.TextBetween(from, to, "\n")
	req, err := action.Request(original, a.surrounding(state.Doc, from, to))
	if err != nil {
		return Proposal{}, err
	}
	return a.propose(ctx, req, from, to, original), nil
}

// surrounding returns the text of [from, to) with up to half the context
// window on each side.
func (a *Assistant) surrounding(d *doc.Doc, from, to int) string {
	half := a.window / 2
	return tail(d.TextBetween(0, from, "\n"), half) + d.TextBetween(from, to, "\n") + head(d.TextBetween(to, d.Size(), "\n"), half)
}

func (a *Assistant) propose(ctx context.Context, req Request, from, to int, original string) Proposal {
	req.Model = a.model
	p := Proposal{ID: uuid.New(), Action: req.Action, From: from, To: to, Original: original}
	id := a.tracker.start(Pending{ID: p.ID, Kind: "proposal", Anchor: from, AnchorContent: original, Key: req.Action.String()})
	resp, err := a.gen.Generate(ctx, req)
	if err != nil {
		a.tracker.finish(id, StatusFailed)
		a.logger.Warn("rewrite failed", "action", req.Action, "error", err)
		p.Text, p.Failed = "Error: "+err.Error(), true
		return p
	}
	a.tracker.finish(id, StatusApplied)
	p.Text = strings.TrimSpace(resp.Text)
	if req.Action == ActionFixIssue {
		p.Text = unquote(p.Text)
	}
	return p
}

// Apply builds the transaction replacing the captured range with the
// proposal. It returns nil when the proposal failed or the range no longer
// holds the captured text.
func (a *Assistant) Apply(state editor.State, p Proposal) (*transform.Transaction, error) {
	if p.Failed || p.To > state.Doc.Size() || p.From >= p.To {
		return nil, nil
	}
	if state.Doc.TextBetween(p.From, p.To, "\n") != p.Original {
		a.logger.Debug("proposal out of date", "id", p.ID, "action", p.Action)
		return nil, nil
	}
	tr := transform.New(state.Doc).SetProvenance(transform.ProvenanceAssist)
	if err := tr.Replace(p.From, p.To, inlineText(p.Text)); err != nil {
		return nil, fmt.Errorf("failed to apply proposal: %w", err)
	}
	tr.SetSelection(transform.Cursor(tr.Mapping().Map(p.To, 1)))
	return tr, nil
}

// Consult asks for advice on the draft of state. Service errors come back
// as failed consultations.
func (a *Assistant) Consult(ctx context.Context, action Action, state editor.State) (Consultation, error) {
	mode, err := action.Mode()
	if err != nil {
		return Consultation{}, err
	}
	if mode != ModeConsult && mode != ModeFactCheck {
		return Consultation{}, fmt.Errorf("%w: %s is not a consultation", ErrWrongMode, action)
	}
	if action.needsInput() {
		return Consultation{}, fmt.Errorf("%w: %s needs more than the draft", ErrWrongMode, action)
	}
	draft := state.Doc.TextContent()
	if len([]rune(strings.TrimSpace(draft))) < action.minContent() {
		return Consultation{}, ErrNeedMoreContent
	}
	req, err := action.Request(tail(draft, a.window*4), "")
	if err != nil {
		return Consultation{}, err
	}
	return a.consult(ctx, req), nil
}

func (a *Assistant) consult(ctx context.Context, req Request) Consultation {
	req.Model = a.model
	id := a.tracker.start(Pending{Kind: "consult", Key: req.Action.String()})
	resp, err := a.gen.Generate(ctx, req)
	if err != nil {
		a.tracker.finish(id, StatusFailed)
		a.logger.Warn("consultation failed", "action", req.Action, "error", err)
		return Consultation{Action: req.Action, Text: "Error: " + err.Error(), Failed: true}
	}
	a.tracker.finish(id, StatusApplied)
	return Consultation{Action: req.Action, Text: strings.TrimSpace(resp.Text)}
}

// FactCheck consults the fact-check prompt and parses its findings.
func (a *Assistant) FactCheck(ctx context.Context, state editor.State) (FactCheck, error) {
	c, err := a.Consult(ctx, ActionFactCheck, state)
	if err != nil {
		return FactCheck{}, err
	}
	if c.Failed {
		return FactCheck{Findings: []Finding{}, Raw: c.Text}, nil
	}
	return ParseFindings(c.Text), nil
}

// inlineText converts generated text to inline content, turning newlines
// into hard breaks.
func inlineText(s string) doc.Fragment {
	var out doc.Fragment
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, doc.Leaf(doc.TypeHardBreak, nil)...)
		}
		out = append(out, doc.Text(line)...)
	}
	return out
}
