package assist

import (
	"fmt"
	"strings"
)

// Action names one generation prompt. The zero value is not an action.
type Action uint8

const (
	_ Action = iota

	// Edit actions rewrite the selection.
	ActionCopyedit
	ActionGrammar
	ActionRedundancy
	ActionCadence
	ActionExpand
	ActionClarity
	ActionSimplify
	ActionStrengthen
	ActionShorten

	// Tone actions rewrite the selection in another register.
	ActionFormal
	ActionCasual
	ActionAcademic
	ActionWitty
	ActionPoetic

	// Stuck actions ask for advice on the whole draft.
	ActionNext
	ActionEnd
	ActionTransition
	ActionExpandIdeas
	ActionAngle
	ActionCounter
	ActionExample
	ActionOpening
	ActionFramework

	// Analysis actions read the whole draft and report.
	ActionSummary
	ActionTitles
	ActionOutline
	ActionTakeaways
	ActionConsistency
	ActionHooks
	ActionResearchGaps
	ActionCleanup

	// Audience actions read the draft as a given kind of reader.
	ActionAudienceSkeptic
	ActionAudienceExpert
	ActionAudienceNewcomer
	ActionAudienceCritic
	ActionAudienceSupporter
	ActionAudienceExecutive
	ActionAudienceJournalist

	// Notes actions work from scratchpad notes; the draft is context.
	ActionNotesOutline
	ActionNotesDraft
	ActionNotesReconcile

	ActionChat
	ActionFixIssue
	ActionComplete
	ActionFactCheck

	actionCount
)

var actionNames = [actionCount]string{
	ActionCopyedit:           "copyedit",
	ActionGrammar:            "grammar",
	ActionRedundancy:         "redundancy",
	ActionCadence:            "cadence",
	ActionExpand:             "expand",
	ActionClarity:            "clarity",
	ActionSimplify:           "simplify",
	ActionStrengthen:         "strengthen",
	ActionShorten:            "shorten",
	ActionFormal:             "formal",
	ActionCasual:             "casual",
	ActionAcademic:           "academic",
	ActionWitty:              "witty",
	ActionPoetic:             "poetic",
	ActionNext:               "next",
	ActionEnd:                "end",
	ActionTransition:         "transition",
	ActionExpandIdeas:        "expand-ideas",
	ActionAngle:              "angle",
	ActionCounter:            "counter",
	ActionExample:            "example",
	ActionOpening:            "opening",
	ActionFramework:          "framework",
	ActionSummary:            "summary",
	ActionTitles:             "titles",
	ActionOutline:            "outline",
	ActionTakeaways:          "takeaways",
	ActionConsistency:        "consistency",
	ActionHooks:              "hooks",
	ActionResearchGaps:       "research-gaps",
	ActionCleanup:            "cleanup",
	ActionAudienceSkeptic:    "audience-skeptic",
	ActionAudienceExpert:     "audience-expert",
	ActionAudienceNewcomer:   "audience-newcomer",
	ActionAudienceCritic:     "audience-critic",
	ActionAudienceSupporter:  "audience-supporter",
	ActionAudienceExecutive:  "audience-executive",
	ActionAudienceJournalist: "audience-journalist",
	ActionNotesOutline:       "notes-outline",
	ActionNotesDraft:         "notes-draft",
	ActionNotesReconcile:     "notes-reconcile",
	ActionChat:               "chat",
	ActionFixIssue:           "fix-issue",
	ActionComplete:           "complete",
	ActionFactCheck:          "fact-check",
}

func (a Action) valid() bool { return a > 0 && a < actionCount }

func (a Action) String() string {
	if !a.valid() {
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
	return actionNames[a]
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	if !a.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAction, a)
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Actions lists the catalog in declaration order.
func Actions() []Action {
	out := make([]Action, 0, actionCount-1)
	for a := Action(1); a < actionCount; a++ {
		out = append(out, a)
	}
	return out
}

// ParseAction resolves a catalog name.
func ParseAction(name string) (Action, error) {
	for a := Action(1); a < actionCount; a++ {
		if actionNames[a] == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Mode is how an action's result is used.
type Mode int

const (
	// ModeRewrite results replace the selection.
	ModeRewrite Mode = iota
	// ModeConsult results are advice shown next to the document.
	ModeConsult
	// ModeComplete results are ghost text at the cursor.
	ModeComplete
	// ModeFactCheck results are parsed into findings.
	ModeFactCheck
)

// Mode reports how the action's result is used.
func (a Action) Mode() (Mode, error) {
	switch a {
	case ActionCopyedit, ActionGrammar, ActionRedundancy, ActionCadence, ActionExpand,
		ActionClarity, ActionSimplify, ActionStrengthen, ActionShorten,
		ActionFormal, ActionCasual, ActionAcademic, ActionWitty, ActionPoetic,
		ActionFixIssue:
		return ModeRewrite, nil
	case ActionNext, ActionEnd, ActionTransition, ActionExpandIdeas, ActionAngle,
		ActionCounter, ActionExample, ActionOpening, ActionFramework,
		ActionSummary, ActionTitles, ActionOutline, ActionTakeaways, ActionConsistency,
		ActionHooks, ActionResearchGaps, ActionCleanup,
		ActionAudienceSkeptic, ActionAudienceExpert, ActionAudienceNewcomer, ActionAudienceCritic,
		ActionAudienceSupporter, ActionAudienceExecutive, ActionAudienceJournalist,
		ActionNotesOutline, ActionNotesDraft, ActionNotesReconcile, ActionChat:
		return ModeConsult, nil
	case ActionComplete:
		return ModeComplete, nil
	case ActionFactCheck:
		return ModeFactCheck, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownAction, a)
}

// needsInput reports whether the action takes input besides the draft.
func (a Action) needsInput() bool {
	switch a {
	case ActionNotesOutline, ActionNotesDraft, ActionNotesReconcile, ActionChat:
		return true
	}
	return false
}

// minContent is the draft length, in runes, below which a consultation is
// refused.
func (a Action) minContent() int {
	switch a {
	case ActionSummary, ActionTitles, ActionTakeaways, ActionHooks:
		return 50
	case ActionConsistency, ActionResearchGaps,
		ActionAudienceSkeptic, ActionAudienceExpert, ActionAudienceNewcomer, ActionAudienceCritic,
		ActionAudienceSupporter, ActionAudienceExecutive, ActionAudienceJournalist:
		return 100
	case ActionNotesOutline, ActionNotesDraft, ActionNotesReconcile, ActionChat:
		return 0
	}
	return minConsultRunes
}

const completeInstruction = `You are a proactive writing autocomplete engine. Your job is to help writers maintain their flow by suggesting natural continuations. Given the context and text before the cursor, ALWAYS provide a helpful continuation. Output ONLY the completion text: no quotes, no explanation, no preamble.

Guidelines:
- Always suggest something. Even if unsure, offer a reasonable continuation.
- Complete partial sentences naturally
- Start new sentences when appropriate (after periods, at paragraph starts)
- Match the author's tone and vocabulary
- Be bold with suggestions; writers can always reject them
- Keep completions to 1-3 sentences max
- If at a paragraph end, suggest a transition to the next idea`

const factCheckInstruction = `You are a fact-checker. Analyze the text for factual claims. For each claim that seems dubious, unverifiable, or potentially incorrect, output a JSON array of objects with these fields:
- "claim": the exact text of the claim
- "issue": brief explanation of why it's flagged
- "confidence": "low", "medium", or "high" (how confident you are it's problematic)

Output ONLY valid JSON. If no issues found, output an empty array [].`

const coachInstruction = "You're a writing coach helping a writer who's stuck. Be specific and practical. Reference their actual content."

const chatInstruction = "You're a thoughtful writing collaborator discussing a piece of writing with its author. Engage in a natural conversation about the writing. Be constructive, specific, and reference the actual content. Challenge ideas when appropriate, suggest alternatives, and help the writer think through their arguments. Keep responses concise but substantive."

const chatSelectionInstruction = "You're a writing assistant helping to refine a specific piece of text the author selected from their document. When the author asks for changes or refinements, output ONLY the revised text that should replace the selection. Do not include explanations, just the refined text. If the author asks a question about the text rather than requesting changes, you may explain normally."

const fixIssueInstruction = "You are a writing editor. %s\n\nIssue: %s\n\nProvide ONLY the rewritten text, nothing else. Keep the same tone and intent. Be concise."

const audienceInstruction = `Read this piece through the eyes of %s.

Provide:
1. **First impression**: What would they think in the first 30 seconds?
2. **Strengths**: What would resonate with this reader?
3. **Weaknesses**: What would lose them or turn them off?
4. **Questions**: What would they want to know more about?
5. **Verdict**: Would they finish reading? Share it? Dismiss it?

Be specific and reference actual content.`

var prompts = [actionCount]string{
	ActionCopyedit:   "You are a copy editor. Fix spelling, punctuation, capitalization, and formatting issues in the selected text. Preserve the author's voice. Output ONLY the corrected text.",
	ActionGrammar:    "You are a grammar editor. Fix grammatical errors in the selected text while preserving meaning and voice. Output ONLY the corrected text.",
	ActionRedundancy: "You are a conciseness editor. Remove redundant words, phrases, and sentences from the selected text. Make it tighter without losing meaning. Output ONLY the revised text.",
	ActionCadence:    "You are a prose rhythm editor. Improve the cadence and flow of the selected text: vary sentence length, improve transitions, make it read more naturally. Output ONLY the revised text.",
	ActionExpand:     "You are a writing assistant. Expand the selected text with concrete examples, evidence, or elaboration that supports the point being made. Match the document's tone. Output ONLY the expanded text.",
	ActionClarity:    "You are a clarity editor. Rewrite the selected text to be clearer and easier to understand. Eliminate ambiguity, untangle complex sentences, and make the meaning unmistakable. Preserve the author's intent. Output ONLY the revised text.",
	ActionSimplify:   "You are a simplification editor. Rewrite the selected text using simpler words and shorter sentences. Target a general audience: no jargon, no unnecessary complexity. Preserve meaning. Output ONLY the simplified text.",
	ActionStrengthen: "You are an argumentation editor. Strengthen the reasoning in the selected text. Make claims more precise, add qualifiers where needed, sharpen the logic, and make the argument more compelling. Output ONLY the strengthened text.",
	ActionShorten:    "You are a brevity editor. Cut the selected text down to its essential meaning. Remove filler, hedging, and anything that doesn't earn its place. Aim for at least 30% shorter. Output ONLY the shortened text.",

	ActionFormal:   "Rewrite the following text in a formal, professional tone. Preserve meaning exactly. Output ONLY the rewritten text.",
	ActionCasual:   "Rewrite the following text in a casual, conversational tone. Preserve meaning exactly. Output ONLY the rewritten text.",
	ActionAcademic: "Rewrite the following text in an academic, scholarly tone with precise language. Preserve meaning exactly. Output ONLY the rewritten text.",
	ActionWitty:    "Rewrite the following text with wit and clever turns of phrase, while preserving the core meaning. Output ONLY the rewritten text.",
	ActionPoetic:   "Rewrite the following text with lyrical, evocative language. Preserve meaning but make it beautiful. Output ONLY the rewritten text.",

	ActionNext:        "What should I write next? Give me 3 concrete directions I could take from here, each in 1-2 sentences.",
	ActionEnd:         "How should I end this piece? Give me 3 possible endings: a strong conclusion, a call to action, and a thought-provoking closer.",
	ActionTransition:  "I'm stuck on how to transition from the current section. Suggest 3 bridge sentences or transitional approaches.",
	ActionExpandIdeas: "What points in my draft deserve more depth? Identify 2-3 ideas I could expand on and suggest what to add.",
	ActionAngle:       "What alternative angles could I explore? Suggest 3 different perspectives or framings for this topic.",
	ActionCounter:     "What counter-arguments should I address? Identify the strongest objections a reader might have.",
	ActionExample:     "What examples or anecdotes would strengthen this? Suggest 3 specific examples I could add.",
	ActionOpening:     "My opening isn't working. Give me 3 alternative ways to start this piece.",
	ActionFramework: `I need an organizing framework for this piece. The best articles work for both experts and novices: experts get a new mental model, novices get a roadmap.

Suggest 3 potential frameworks:
1. A taxonomy or classification system
2. A process or journey structure
3. A contrarian reframe or new lens

For each, explain: What's the "aha" for experts? What's the roadmap for novices? Give a concrete outline of how the piece would be structured using this framework.`,

	ActionSummary: "Provide a concise TL;DR summary of this piece in 2-3 sentences. Capture the core argument and key points. Then list the main sections/beats in bullet form.",
	ActionTitles:  "Generate 5 compelling title options for this piece. Each should be distinct in style: one straightforward, one intriguing/curiosity-gap, one bold/provocative, one specific/data-driven, one conversational. Just list the titles, numbered.",
	ActionOutline: "You are a writing assistant. Generate a detailed outline for the given draft with sections and sub-points. Use markdown heading format (##, ###) and bullet points. Output ONLY the outline.",
	ActionTakeaways: `As a reader, what would I take away from this piece? Help the writer understand how their work comes across.

Analyze:
1. **Main message**: What's the one thing a reader will remember?
2. **Emotional impact**: How does this make the reader feel?
3. **Action/change**: What might a reader do or think differently after reading?
4. **Memorable moments**: Which parts stick out most?
5. **Potential confusion**: Where might readers get lost or disagree?

Be honest and specific. Reference actual content.`,
	ActionConsistency: `Analyze this piece for logical consistency. Look for:

1. **Contradictions**: Does the author say one thing and then contradict it?
2. **Logical gaps**: Are there leaps in reasoning that don't follow?
3. **Inconsistent claims**: Do numbers, dates, or facts conflict?
4. **Tone shifts**: Does the voice or stance shift unexpectedly?
5. **Unsupported assertions**: Are bold claims made without backing?

Only report actual issues. If the piece is consistent, say so. Be specific and quote the conflicting passages.`,
	ActionHooks: `Generate 5 compelling opening hooks for this piece. Each should be a different style:

1. **Bold claim**: Start with a provocative statement
2. **Story**: Open with a brief anecdote or scene
3. **Question**: Draw the reader in with a question
4. **Contrast**: Set up a tension or paradox
5. **Statistic/Fact**: Lead with something concrete and surprising

Keep each hook to 1-2 sentences max. They should work as the very first thing a reader sees.`,
	ActionResearchGaps: `Identify claims in this piece that would benefit from sources, evidence, or research. For each:

1. Quote the specific claim
2. Explain why it needs backing (is it controversial? specific? counterintuitive?)
3. Suggest what type of source would help (study, expert quote, data, example)

Focus on claims that readers might question or that would be more persuasive with evidence. Skip obvious statements or personal opinions that don't need citation.`,
	ActionCleanup: `Analyze this document for layout and formatting issues. Look for:
- Inconsistent heading hierarchy (e.g., H1 followed by H3)
- Orphaned list items or broken lists
- Inconsistent formatting (some items bold, others not)
- Missing paragraph breaks or run-on sections
- Inconsistent bullet/number usage
- Empty sections or placeholder text

List only the issues you find, with specific locations. If no issues, say "No formatting issues detected." Be concise.`,

	ActionAudienceSkeptic:    "a skeptical reader who questions claims and looks for holes in arguments",
	ActionAudienceExpert:     "an expert in this field who knows the topic deeply",
	ActionAudienceNewcomer:   "someone completely new to this topic",
	ActionAudienceCritic:     "a hostile critic looking for weaknesses",
	ActionAudienceSupporter:  "someone predisposed to agree; what would make them share this?",
	ActionAudienceExecutive:  "a busy executive who skims and wants the bottom line",
	ActionAudienceJournalist: "a journalist evaluating this for newsworthiness",

	ActionNotesOutline: "You are a writing assistant. The user has jotted down raw notes and thoughts in a scratchpad while working on a piece of writing. Turn these raw notes into a clean, structured outline using markdown headings and bullet points. Organize related ideas together, suggest a logical flow, and surface any implicit structure. Output ONLY the structured outline in markdown (headings + bullets). No commentary.",
	ActionNotesDraft:   "You are a writing assistant. The user has jotted down raw notes and thoughts in a scratchpad while working on a piece of writing. Transform these raw notes into a cohesive first draft. Write in flowing prose that connects the ideas naturally, matching the tone and style of the document when there is one. Output ONLY the draft text. No commentary or meta-discussion.",
	ActionNotesReconcile: `You are a writing assistant. The user has raw notes in a scratchpad alongside a document draft. Compare them and analyze:

1. **Addressed**: Ideas from the notes that appear in the draft
2. **Missing**: Ideas from the notes NOT yet in the draft
3. **Diverged**: Places where the draft went in a different direction than the notes
4. **New in draft**: Ideas in the draft that weren't in the original notes

Provide a concise analysis using the four categories above. Use bullet points under each heading.`,
}

// Request builds the generation request for primary text and its
// surrounding context.
func (a Action) Request(primary, context string) (Request, error) {
	req := Request{Action: a, PrimaryText: primary, ContextText: context}
	switch a {
	case ActionCopyedit, ActionGrammar, ActionRedundancy, ActionCadence, ActionExpand,
		ActionClarity, ActionSimplify, ActionStrengthen, ActionShorten:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Selected text to edit", 1024
	case ActionFormal, ActionCasual, ActionAcademic, ActionWitty, ActionPoetic:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Text to rewrite", 1024
	case ActionNext, ActionEnd, ActionTransition, ActionExpandIdeas, ActionAngle,
		ActionCounter, ActionExample, ActionOpening, ActionFramework:
		req.Instruction = coachInstruction + "\n\n" + prompts[a]
		req.PrimaryLabel, req.MaxTokens = "Here's their draft", 800
	case ActionSummary, ActionTitles:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Content", 500
	case ActionOutline:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Draft content", 1024
	case ActionTakeaways, ActionHooks, ActionCleanup:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Document", 600
	case ActionConsistency, ActionResearchGaps:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Document", 700
	case ActionAudienceSkeptic, ActionAudienceExpert, ActionAudienceNewcomer, ActionAudienceCritic,
		ActionAudienceSupporter, ActionAudienceExecutive, ActionAudienceJournalist:
		req.Instruction = fmt.Sprintf(audienceInstruction, prompts[a])
		req.PrimaryLabel, req.MaxTokens = "Document", 600
	case ActionNotesOutline, ActionNotesDraft, ActionNotesReconcile:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = prompts[a], "Scratchpad notes", 2048
	case ActionChat:
		req.Instruction, req.MaxTokens = chatInstruction, 1000
	case ActionFixIssue:
		req.Instruction = fmt.Sprintf(fixIssueInstruction, "Improve this text.", "general readability")
		req.PrimaryLabel, req.MaxTokens = "Text to improve", 300
	case ActionComplete:
		req.Instruction, req.PrimaryLabel, req.MaxTokens = completeInstruction, "Text before cursor", 100
	case ActionFactCheck:
		req.Instruction, req.MaxTokens = factCheckInstruction, 2048
		req.ContextText = ""
	default:
		return Request{}, fmt.Errorf("%w: %v", ErrUnknownAction, a)
	}
	return req, nil
}

// unquote strips one pair of quotes a model may wrap a rewrite in.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
