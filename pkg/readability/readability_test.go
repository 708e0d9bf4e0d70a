package readability_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/transform"
)

func ofKind(issues []readability.Issue, kind readability.Kind) []readability.Issue {
	var out []readability.Issue
	for _, is := range issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n-1)) + " end."
}

func TestAnalyzer_Rules(t *testing.T) {
	a := readability.MustAnalyzer(readability.DefaultRules())

	t.Run("Passive Voice", func(t *testing.T) {
		issues := a.Analyze("The report was written by the team.")
		require.Len(t, issues, 1)
		assert.Equal(t, readability.Issue{Kind: readability.KindPassiveVoice, From: 11, To: 22, Message: "Passive voice"}, issues[0])
	})

	t.Run("Adverbs Skip Exceptions", func(t *testing.T) {
		issues := a.Analyze("She ran quickly. It was early.")
		require.Len(t, issues, 1)
		assert.Equal(t, readability.KindAdverb, issues[0].Kind)
		assert.Equal(t, 8, issues[0].From)
		assert.Equal(t, 15, issues[0].To)
	})

	t.Run("Complex Words Carry A Suggestion", func(t *testing.T) {
		issues := a.Analyze("We Utilize tools.")
		require.Len(t, issues, 1)
		assert.Equal(t, readability.Issue{
			Kind:       readability.KindComplexWord,
			From:       3,
			To:         10,
			Message:    `"Utilize" → "use"`,
			Suggestion: "use",
		}, issues[0])
	})

	t.Run("Weak Transitions Open Sentences", func(t *testing.T) {
		issues := ofKind(a.Analyze("Basically, it works. That said, fine."), readability.KindWeakTransition)
		require.Len(t, issues, 2)
		assert.Equal(t, 0, issues[0].From)
		assert.Equal(t, 9, issues[0].To)
		assert.Equal(t, `Weak transition: "basically"`, issues[0].Message)
		assert.Equal(t, 21, issues[1].From)
		assert.Equal(t, 30, issues[1].To)
	})

	t.Run("Transition Needs A Separator", func(t *testing.T) {
		assert.Empty(t, ofKind(a.Analyze("Nowhere to go."), readability.KindWeakTransition))
	})

	t.Run("Sentence Length", func(t *testing.T) {
		assert.Empty(t, a.Analyze(words(20)))

		long := a.Analyze(words(21))
		require.Len(t, long, 1)
		assert.Equal(t, readability.KindLongSentence, long[0].Kind)
		assert.Equal(t, "Hard to read (21 words)", long[0].Message)

		veryLong := a.Analyze(words(31))
		require.Len(t, veryLong, 1)
		assert.Equal(t, readability.KindVeryLongSentence, veryLong[0].Kind)
		assert.Equal(t, "Very hard to read (31 words)", veryLong[0].Message)
	})

	t.Run("Unterminated Fragment Counts", func(t *testing.T) {
		text := "Short. " + strings.Repeat("word ", 25)
		issues := a.Analyze(text)
		require.Len(t, issues, 1)
		assert.Equal(t, readability.KindLongSentence, issues[0].Kind)
		assert.Equal(t, 6, issues[0].From)
		assert.Equal(t, len(text), issues[0].To)
	})

	t.Run("Offsets Are Runes Across Paragraphs", func(t *testing.T) {
		issues := a.Analyze("Café é utilize.")
		require.Len(t, issues, 1)
		assert.Equal(t, 7, issues[0].From)

		issues = a.Analyze("First.\nWe utilize.")
		require.Len(t, issues, 1)
		assert.Equal(t, 10, issues[0].From)
		assert.Equal(t, 17, issues[0].To)
	})

	t.Run("Overlapping Issues Are Kept In Order", func(t *testing.T) {
		issues := a.Analyze("Basically, it works.")
		require.Len(t, issues, 2)
		assert.Equal(t, readability.KindAdverb, issues[0].Kind)
		assert.Equal(t, readability.KindWeakTransition, issues[1].Kind)
	})
}

func TestRules_Load(t *testing.T) {
	t.Run("Overrides Defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := "long_sentence: 3\nvery_long_sentence: 10\ncomplex_words:\n  leverage: use\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		rules, err := readability.LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, "use", rules.ComplexWords["leverage"])
		assert.Equal(t, "use", rules.ComplexWords["utilize"])
		assert.NotEmpty(t, rules.WeakTransitions)

		issues := readability.MustAnalyzer(rules).Analyze("We leverage many tools.")
		assert.Len(t, ofKind(issues, readability.KindLongSentence), 1)
		assert.Len(t, ofKind(issues, readability.KindComplexWord), 1)
	})

	t.Run("Rejects Inverted Thresholds", func(t *testing.T) {
		_, err := readability.ParseRules([]byte("long_sentence: 40\n"))
		assert.Error(t, err)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := readability.LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestPlugin(t *testing.T) {
	p := readability.NewPlugin(readability.MustAnalyzer(readability.DefaultRules()))
	ed := editor.New(doc.MustNew(doc.Paragraph(doc.Text("We utilize tools."))), editor.WithPlugins(p))

	dispatch := func(fn func(tr *transform.Transaction) error) {
		tr := ed.Begin()
		require.NoError(t, fn(tr))
		_, err := ed.Dispatch(tr)
		require.NoError(t, err)
	}

	t.Run("Idle While Disabled", func(t *testing.T) {
		dispatch(func(tr *transform.Transaction) error { return tr.InsertText(18, " Now") })
		assert.Empty(t, p.Decorations().Items)
	})

	t.Run("Maps Issues To Document Positions", func(t *testing.T) {
		p.SetEnabled(true, ed.State())
		set := p.Decorations()
		require.Len(t, set.Items, 1)
		assert.Equal(t, 4, set.Items[0].DocFrom)
		assert.Equal(t, 11, set.Items[0].DocTo)
		assert.Equal(t, ed.State().Revision, set.Revision)
	})

	t.Run("Recomputes On Change", func(t *testing.T) {
		dispatch(func(tr *transform.Transaction) error { return tr.InsertText(1, "Basically, ") })
		set := p.Decorations()
		assert.Equal(t, ed.State().Revision, set.Revision)
		var kinds []readability.Kind
		for _, d := range set.Items {
			kinds = append(kinds, d.Kind)
		}
		assert.Contains(t, kinds, readability.KindWeakTransition)
		assert.Contains(t, kinds, readability.KindComplexWord)
	})

	t.Run("Skips Deleted Suggestions", func(t *testing.T) {
		dispatch(func(tr *transform.Transaction) error {
			return tr.AddMark(15, 22, doc.Mark{Type: doc.MarkDeletion, Timestamp: 1})
		})
		for _, d := range p.Decorations().Items {
			assert.NotEqual(t, readability.KindComplexWord, d.Kind)
		}
	})

	t.Run("Disabling Clears", func(t *testing.T) {
		p.SetEnabled(false, ed.State())
		assert.Empty(t, p.Decorations().Items)
		assert.False(t, p.Enabled())
	})
}
