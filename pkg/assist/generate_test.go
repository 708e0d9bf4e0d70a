package assist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/transform"
)

func TestAssistant_Suggest(t *testing.T) {
	decorated := func(t *testing.T) (*editor.Editor, readability.Decoration) {
		t.Helper()
		p := readability.NewPlugin(readability.MustAnalyzer(readability.DefaultRules()))
		ed := editor.New(doc.MustNew(doc.Paragraph(doc.Text("We utilize tools."))), editor.WithPlugins(p))
		p.SetEnabled(true, ed.State())
		items := p.Decorations().Items
		require.Len(t, items, 1)
		require.Equal(t, readability.KindComplexWord, items[0].Kind)
		return ed, items[0]
	}

	t.Run("Rewrites The Decorated Range", func(t *testing.T) {
		gen := &fakeGenerator{text: `"use"`}
		a := assist.NewAssistant(gen)
		ed, d := decorated(t)

		p, err := a.Suggest(context.Background(), ed.State(), d)
		require.NoError(t, err)
		assert.Equal(t, assist.ActionFixIssue, p.Action)
		assert.Equal(t, "utilize", p.Original)
		assert.Equal(t, "use", p.Text)

		req := gen.last()
		assert.Contains(t, req.Instruction, "simpler, more accessible language")
		assert.Contains(t, req.Instruction, "Issue: "+d.Message)
		assert.Equal(t, "utilize", req.PrimaryText)
		assert.Contains(t, req.ContextText, "We utilize tools.")

		tr, err := a.Apply(ed.State(), p)
		require.NoError(t, err)
		_, err = ed.Dispatch(tr)
		require.NoError(t, err)
		assert.Equal(t, "We use tools.", ed.State().Doc.TextContent())
	})

	t.Run("Edited Range Is Not Applied", func(t *testing.T) {
		a := assist.NewAssistant(&fakeGenerator{text: "use"})
		ed, d := decorated(t)
		p, err := a.Suggest(context.Background(), ed.State(), d)
		require.NoError(t, err)

		tr := ed.Begin()
		require.NoError(t, tr.InsertText(5, "x"))
		_, err = ed.Dispatch(tr)
		require.NoError(t, err)

		stale, err := a.Apply(ed.State(), p)
		assert.NoError(t, err)
		assert.Nil(t, stale)
	})

	t.Run("Out Of Range", func(t *testing.T) {
		a := assist.NewAssistant(&fakeGenerator{})
		ed, d := decorated(t)
		d.DocFrom, d.DocTo = 15, 40
		_, err := a.Suggest(context.Background(), ed.State(), d)
		assert.ErrorIs(t, err, assist.ErrEmptySelection)
	})
}

func TestAssistant_Chat(t *testing.T) {
	t.Run("Carries The Conversation", func(t *testing.T) {
		gen := &fakeGenerator{text: "Cut the second line."}
		a := assist.NewAssistant(gen)
		history := []assist.Turn{
			{Role: assist.RoleAuthor, Text: "Is the opening weak?"},
			{Role: assist.RoleAssistant, Text: "A little."},
		}
		c, err := a.Chat(context.Background(), editor.New(sample()).State(), history, "How do I fix it?")
		require.NoError(t, err)
		assert.Equal(t, assist.ActionChat, c.Action)
		assert.Equal(t, "Cut the second line.", c.Text)

		req := gen.last()
		assert.Contains(t, req.Instruction, "writing collaborator")
		assert.Equal(t, "Author: Is the opening weak?\n\nAssistant: A little.\n\nAuthor: How do I fix it?", req.PrimaryText)
		assert.Equal(t, "Title\nhello world", req.ContextText)
	})

	t.Run("Selection Narrows The Topic", func(t *testing.T) {
		gen := &fakeGenerator{text: "hi"}
		a := assist.NewAssistant(gen)
		ed := editor.New(sample())
		_, err := ed.Dispatch(ed.Begin().SetSelection(transform.Span(8, 13)))
		require.NoError(t, err)

		_, err = a.Chat(context.Background(), ed.State(), nil, "Shorter?")
		require.NoError(t, err)
		assert.Contains(t, gen.last().Instruction, "Selected text:\n\"hello\"")
	})

	t.Run("Blank Message", func(t *testing.T) {
		a := assist.NewAssistant(&fakeGenerator{})
		_, err := a.Chat(context.Background(), editor.New(sample()).State(), nil, "  ")
		assert.ErrorIs(t, err, assist.ErrEmptyMessage)
	})
}

func TestAssistant_FromNotes(t *testing.T) {
	t.Run("Draft From Notes", func(t *testing.T) {
		gen := &fakeGenerator{text: "A paragraph."}
		a := assist.NewAssistant(gen)
		c, err := a.FromNotes(context.Background(), assist.ActionNotesDraft, "- cats\n- naps", editor.New(sample()).State())
		require.NoError(t, err)
		assert.Equal(t, "A paragraph.", c.Text)
		assert.Equal(t, "Document context:\nTitle\nhello world\n\nScratchpad notes:\n- cats\n- naps", gen.last().Prompt())
	})

	t.Run("Reconcile Against An Empty Draft", func(t *testing.T) {
		gen := &fakeGenerator{text: "Missing: everything."}
		a := assist.NewAssistant(gen)
		_, err := a.FromNotes(context.Background(), assist.ActionNotesReconcile, "cats", editor.New(doc.Default()).State())
		require.NoError(t, err)
		assert.Equal(t, "(Empty document)", gen.last().ContextText)
	})

	t.Run("Rejects Other Actions And Empty Notes", func(t *testing.T) {
		a := assist.NewAssistant(&fakeGenerator{})
		state := editor.New(sample()).State()
		_, err := a.FromNotes(context.Background(), assist.ActionSummary, "cats", state)
		assert.ErrorIs(t, err, assist.ErrWrongMode)
		_, err = a.FromNotes(context.Background(), assist.ActionNotesOutline, " \n", state)
		assert.ErrorIs(t, err, assist.ErrNeedMoreContent)
	})
}
