// Package readability flags hard-to-read prose. Findings are advisory
// decorations over the document's plain text and never change the document.
package readability

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Kind classifies an issue.
type Kind string

const (
	KindVeryLongSentence Kind = "very-long-sentence"
	KindLongSentence     Kind = "long-sentence"
	KindPassiveVoice     Kind = "passive-voice"
	KindAdverb           Kind = "adverb"
	KindComplexWord      Kind = "complex-word"
	KindWeakTransition   Kind = "weak-transition"
)

var kindOrder = map[Kind]int{
	KindVeryLongSentence: 0,
	KindLongSentence:     1,
	KindPassiveVoice:     2,
	KindAdverb:           3,
	KindComplexWord:      4,
	KindWeakTransition:   5,
}

// Issue is one finding. From and To are rune offsets into the analyzed text.
type Issue struct {
	Kind       Kind   `json:"kind"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%d,%d) %s", i.Kind, i.From, i.To, i.Message)
}

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
	adverbRe   = regexp.MustCompile(`(?i)\b\w+ly\b`)
)

// Analyzer applies a compiled rule set. It is safe for concurrent use.
type Analyzer struct {
	rules       Rules
	passive     *regexp.Regexp
	complex     *regexp.Regexp
	exceptions  map[string]bool
	suggestions map[string]string
}

// NewAnalyzer compiles rules.
func NewAnalyzer(rules Rules) (*Analyzer, error) {
	a := &Analyzer{
		rules:       rules,
		exceptions:  make(map[string]bool, len(rules.AdverbExceptions)),
		suggestions: make(map[string]string, len(rules.ComplexWords)),
	}
	for _, w := range rules.AdverbExceptions {
		a.exceptions[strings.ToLower(w)] = true
	}

	if len(rules.PassiveAuxiliaries) > 0 {
		participles := append([]string{`\w+ed`}, quoteAll(rules.IrregularParticiples)...)
		re, err := regexp.Compile(`(?i)\b(` + strings.Join(quoteAll(rules.PassiveAuxiliaries), "|") + `)\s+(` + strings.Join(participles, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid passive voice rule: %w", err)
		}
		a.passive = re
	}

	if len(rules.ComplexWords) > 0 {
		words := make([]string, 0, len(rules.ComplexWords))
		for w, s := range rules.ComplexWords {
			a.suggestions[strings.ToLower(w)] = s
			words = append(words, regexp.QuoteMeta(strings.ToLower(w)))
		}
		// Longest first so alternation prefers the full word.
		slices.SortFunc(words, func(x, y string) int { return cmp.Compare(len(y), len(x)) })
		re, err := regexp.Compile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid complex word rule: %w", err)
		}
		a.complex = re
	}
	return a, nil
}

// MustAnalyzer is NewAnalyzer for rule sets known to be valid.
func MustAnalyzer(rules Rules) *Analyzer {
	a, err := NewAnalyzer(rules)
	if err != nil {
		panic(err)
	}
	return a
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = regexp.QuoteMeta(s)
	}
	return out
}

// Analyze returns every issue in text ordered by start offset, then kind.
// Paragraphs are separated by newlines.
func (a *Analyzer) Analyze(text string) []Issue {
	var issues []Issue
	offset := 0
	for _, para := range strings.Split(text, "\n") {
		issues = append(issues, a.paragraph(para, offset)...)
		offset += utf8.RuneCountInString(para) + 1
	}
	slices.SortStableFunc(issues, func(x, y Issue) int {
		return cmp.Or(
			cmp.Compare(x.From, y.From),
			cmp.Compare(kindOrder[x.Kind], kindOrder[y.Kind]),
			cmp.Compare(x.To, y.To),
		)
	})
	return issues
}

// sentences splits para on terminal punctuation. A trailing fragment without
// punctuation counts as a sentence. Bounds are byte offsets.
func sentences(para string) [][2]int {
	var out [][2]int
	end := 0
	for _, m := range sentenceRe.FindAllStringIndex(para, -1) {
		out = append(out, [2]int{m[0], m[1]})
		end = m[1]
	}
	if strings.TrimSpace(para[end:]) != "" {
		out = append(out, [2]int{end, len(para)})
	}
	return out
}

func (a *Analyzer) paragraph(para string, offset int) []Issue {
	var issues []Issue
	// runeAt converts a byte offset within para to a rune offset in the text.
	runeAt := func(b int) int { return offset + utf8.RuneCountInString(para[:b]) }
	add := func(kind Kind, from, to int, msg, suggestion string) {
		issues = append(issues, Issue{Kind: kind, From: runeAt(from), To: runeAt(to), Message: msg, Suggestion: suggestion})
	}

	for _, bounds := range sentences(para) {
		start, end := bounds[0], bounds[1]
		sentence := para[start:end]

		words := len(strings.Fields(sentence))
		switch {
		case words > a.rules.VeryLongSentence:
			add(KindVeryLongSentence, start, end, fmt.Sprintf("Very hard to read (%d words)", words), "")
		case words > a.rules.LongSentence:
			add(KindLongSentence, start, end, fmt.Sprintf("Hard to read (%d words)", words), "")
		}

		if a.passive != nil {
			for _, m := range a.passive.FindAllStringIndex(sentence, -1) {
				add(KindPassiveVoice, start+m[0], start+m[1], "Passive voice", "")
			}
		}

		for _, m := range adverbRe.FindAllStringIndex(sentence, -1) {
			if a.exceptions[strings.ToLower(sentence[m[0]:m[1]])] {
				continue
			}
			add(KindAdverb, start+m[0], start+m[1], "Adverb: consider removing", "")
		}

		lead := len(sentence) - len(strings.TrimLeft(sentence, " \t"))
		opening := strings.ToLower(sentence[lead:])
		for _, t := range a.rules.WeakTransitions {
			t = strings.ToLower(t)
			if strings.HasPrefix(opening, t+" ") || strings.HasPrefix(opening, t+",") {
				add(KindWeakTransition, start+lead, start+lead+len(t), fmt.Sprintf("Weak transition: %q", t), "")
				break
			}
		}
	}

	if a.complex != nil {
		for _, m := range a.complex.FindAllStringIndex(para, -1) {
			word := para[m[0]:m[1]]
			simple := a.suggestions[strings.ToLower(word)]
			add(KindComplexWord, m[0], m[1], fmt.Sprintf("%q → %q", word, simple), simple)
		}
	}
	return issues
}
