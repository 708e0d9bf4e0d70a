package track_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/track"
	"github.com/aretw0/marginalia/pkg/transform"
)

func sample() *doc.Doc {
	// <h1>Title</h1><p>hello world</p>
	return doc.MustNew(
		doc.Heading(1, doc.Text("Title")),
		doc.Paragraph(doc.Text("hello world")),
	)
}

func clock() time.Time { return time.UnixMilli(1000) }

func setup(t *testing.T) (*editor.Editor, *track.Engine) {
	t.Helper()
	eng := track.New(track.WithEnabled(true), track.WithClock(clock))
	ed := editor.New(sample(), editor.WithPlugins(eng), editor.WithClock(clock))
	return ed, eng
}

func edit(t *testing.T, ed *editor.Editor, fn func(tr *transform.Transaction) error) {
	t.Helper()
	tr := ed.Begin()
	require.NoError(t, fn(tr))
	ok, err := ed.Dispatch(tr)
	require.NoError(t, err)
	require.True(t, ok)
}

func typeText(t *testing.T, ed *editor.Editor, pos int, text string) {
	t.Helper()
	for i, r := range []rune(text) {
		edit(t, ed, func(tr *transform.Transaction) error {
			return tr.InsertText(pos+i, string(r))
		})
	}
}

func TestEngine_Insertions(t *testing.T) {
	t.Run("Typed Text Forms One Change", func(t *testing.T) {
		ed, _ := setup(t)
		typeText(t, ed, 13, "abc")

		changes := track.Changes(ed.State().Doc)
		require.Len(t, changes, 1)
		assert.Equal(t, track.Change{Kind: track.KindInsertion, From: 13, To: 16, Text: "abc", Timestamp: 1000}, changes[0])
	})

	t.Run("Deleting Own Insertion Leaves No Trace", func(t *testing.T) {
		ed, _ := setup(t)
		typeText(t, ed, 13, "X")
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(13, 14) })

		assert.True(t, ed.State().Doc.Equal(sample()))
		assert.Empty(t, track.Changes(ed.State().Doc))
	})

	t.Run("Disabled Engine Does Nothing", func(t *testing.T) {
		ed, eng := setup(t)
		eng.SetEnabled(false)
		typeText(t, ed, 13, "X")
		assert.Empty(t, track.Changes(ed.State().Doc))
		assert.False(t, eng.Enabled())
	})
}

func TestEngine_Deletions(t *testing.T) {
	t.Run("Backspace Keeps Text And Moves Before It", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error {
			tr.SetSelection(transform.Cursor(13))
			return nil
		})
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(12, 13) })

		st := ed.State()
		assert.Equal(t, "Title\nhello world", st.Doc.TextContent())
		assert.Equal(t, transform.Cursor(12), st.Selection)
		changes := track.Changes(st.Doc)
		require.Len(t, changes, 1)
		assert.Equal(t, track.KindDeletion, changes[0].Kind)
		assert.Equal(t, "o", changes[0].Text)
	})

	t.Run("Forward Delete Moves Past The Span", func(t *testing.T) {
		ed, _ := setup(t)
		// The cursor starts at 1, inside the title.
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(1, 3) })

		st := ed.State()
		assert.Equal(t, "Title\nhello world", st.Doc.TextContent())
		assert.Equal(t, transform.Cursor(3), st.Selection)
	})

	t.Run("Deleted Text Stays Deleted", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(12, 13) })
		before := ed.State().Doc
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(12, 13) })

		assert.True(t, ed.State().Doc.Equal(before))
		assert.Len(t, track.Changes(ed.State().Doc), 1)
	})

	t.Run("Structure Is Restored", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(3, 10) })

		d := ed.State().Doc
		assert.Equal(t, "Title\nhello world", d.TextContent())
		changes := track.Changes(d)
		require.Len(t, changes, 2)
		assert.Equal(t, "tle", changes[0].Text)
		assert.Equal(t, "he", changes[1].Text)
	})

	t.Run("Replacement Tracks Both Sides", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error {
			return tr.Replace(14, 19, doc.Text("there"))
		})

		changes := track.Changes(ed.State().Doc)
		require.Len(t, changes, 2)
		assert.Equal(t, track.KindDeletion, changes[0].Kind)
		assert.Equal(t, "world", changes[0].Text)
		assert.Equal(t, track.KindInsertion, changes[1].Kind)
		assert.Equal(t, "there", changes[1].Text)
	})
}

func TestEngine_Provenance(t *testing.T) {
	for _, p := range []transform.Provenance{transform.ProvenanceSystem, transform.ProvenanceHistory} {
		t.Run(p.String(), func(t *testing.T) {
			ed, _ := setup(t)
			edit(t, ed, func(tr *transform.Transaction) error {
				tr.SetProvenance(p)
				return tr.InsertText(13, "X")
			})
			assert.Empty(t, track.Changes(ed.State().Doc))
		})
	}

	t.Run("Assist Edits Are Tracked", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error {
			tr.SetProvenance(transform.ProvenanceAssist)
			return tr.InsertText(13, "X")
		})
		assert.Len(t, track.Changes(ed.State().Doc), 1)
	})

	t.Run("Undo Removes Tracked Edit", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(12, 13) })
		require.NoError(t, ed.Undo())
		assert.True(t, ed.State().Doc.Equal(sample()))
	})
}

func TestEngine_Resolve(t *testing.T) {
	mess := func(t *testing.T) (*editor.Editor, *track.Engine) {
		ed, eng := setup(t)
		typeText(t, ed, 13, "X")
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(3, 10) })
		return ed, eng
	}

	t.Run("Reject All Restores The Original", func(t *testing.T) {
		ed, eng := mess(t)
		tr := eng.RejectAll(ed.State())
		require.NotNil(t, tr)
		assert.Equal(t, transform.ProvenanceSystem, tr.Provenance())
		ok, err := ed.Dispatch(tr)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, ed.State().Doc.Equal(sample()))
	})

	t.Run("Accept All Commits Every Change", func(t *testing.T) {
		ed, eng := mess(t)
		ok, err := ed.Dispatch(eng.AcceptAll(ed.State()))
		require.NoError(t, err)
		require.True(t, ok)

		d := ed.State().Doc
		assert.Equal(t, "Ti\nlloX world", d.TextContent())
		assert.Empty(t, track.Changes(d))
		assert.False(t, track.Summarize(d).Pending())
	})

	t.Run("Nothing To Resolve", func(t *testing.T) {
		ed, eng := setup(t)
		assert.Nil(t, eng.AcceptAll(ed.State()))
		assert.Nil(t, eng.RejectAll(ed.State()))
	})

	t.Run("Single Change", func(t *testing.T) {
		ed, eng := mess(t)
		changes := track.Changes(ed.State().Doc)
		require.Len(t, changes, 3)
		assert.Equal(t, track.Stats{Insertions: 1, Deletions: 2, InsertedLength: 1, DeletedLength: 5}, track.Summarize(ed.State().Doc))

		tr, err := eng.Accept(ed.State(), changes[2])
		require.NoError(t, err)
		_, err = ed.Dispatch(tr)
		require.NoError(t, err)

		left := track.Changes(ed.State().Doc)
		require.Len(t, left, 2)
		assert.Equal(t, track.KindDeletion, left[1].Kind)

		_, err = eng.Reject(ed.State(), changes[2])
		assert.ErrorIs(t, err, track.ErrStaleChange)
	})
}

func TestEngine_Blocks(t *testing.T) {
	split := doc.Fragment{{Kind: doc.TokenClose}, {Kind: doc.TokenOpen, Type: doc.TypeParagraph}}

	// typed "ab" after "hello", pressed enter, typed "cd"
	splitEdit := func(t *testing.T) (*editor.Editor, *track.Engine) {
		ed, eng := setup(t)
		typeText(t, ed, 13, "ab")
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Insert(15, split) })
		typeText(t, ed, 17, "cd")
		require.Equal(t, "Title\nhelloab\ncd world", ed.State().Doc.TextContent())
		return ed, eng
	}

	t.Run("Split Is One Change With Its Text", func(t *testing.T) {
		ed, _ := splitEdit(t)
		changes := track.Changes(ed.State().Doc)
		require.Len(t, changes, 1)
		assert.Equal(t, track.Change{Kind: track.KindInsertion, From: 13, To: 19, Text: "ab\ncd", Timestamp: 1000}, changes[0])
	})

	t.Run("Reject All Joins The Split", func(t *testing.T) {
		ed, eng := splitEdit(t)
		ok, err := ed.Dispatch(eng.RejectAll(ed.State()))
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "Title\nhello world", ed.State().Doc.TextContent())
		assert.True(t, ed.State().Doc.Equal(sample()))
	})

	t.Run("Reject Single Change Joins The Split", func(t *testing.T) {
		ed, eng := splitEdit(t)
		tr, err := eng.Reject(ed.State(), track.Changes(ed.State().Doc)[0])
		require.NoError(t, err)
		_, err = ed.Dispatch(tr)
		require.NoError(t, err)
		assert.True(t, ed.State().Doc.Equal(sample()))
	})

	t.Run("Accept All Keeps The Split Unstamped", func(t *testing.T) {
		ed, eng := splitEdit(t)
		ok, err := ed.Dispatch(eng.AcceptAll(ed.State()))
		require.NoError(t, err)
		require.True(t, ok)

		want := doc.MustNew(
			doc.Heading(1, doc.Text("Title")),
			doc.Paragraph(doc.Text("helloab")),
			doc.Paragraph(doc.Text("cd world")),
		)
		assert.True(t, ed.State().Doc.Equal(want))
		assert.Empty(t, track.Changes(ed.State().Doc))
	})

	t.Run("Enter At End Leaves No Empty Paragraph", func(t *testing.T) {
		ed, eng := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Insert(19, split) })
		require.Len(t, track.Changes(ed.State().Doc), 1)

		_, err := ed.Dispatch(eng.RejectAll(ed.State()))
		require.NoError(t, err)
		assert.True(t, ed.State().Doc.Equal(sample()))
	})

	t.Run("Inserted Paragraph Is Removed On Reject", func(t *testing.T) {
		ed, eng := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error {
			return tr.Insert(20, doc.Paragraph(doc.Text("new")))
		})
		changes := track.Changes(ed.State().Doc)
		require.Len(t, changes, 1)
		assert.Equal(t, "\nnew", changes[0].Text)

		_, err := ed.Dispatch(eng.RejectAll(ed.State()))
		require.NoError(t, err)
		assert.True(t, ed.State().Doc.Equal(sample()))
	})

	t.Run("Deleting An Inserted Boundary Joins For Real", func(t *testing.T) {
		ed, _ := setup(t)
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Insert(13, split) })
		edit(t, ed, func(tr *transform.Transaction) error { return tr.Delete(13, 15) })

		assert.True(t, ed.State().Doc.Equal(sample()))
		assert.Empty(t, track.Changes(ed.State().Doc))
	})

	t.Run("Stamp Survives JSON", func(t *testing.T) {
		ed, _ := splitEdit(t)
		data, err := ed.State().Doc.MarshalJSON()
		require.NoError(t, err)
		back, err := doc.ParseJSON(data)
		require.NoError(t, err)
		assert.True(t, back.Equal(ed.State().Doc))
		assert.Equal(t, track.Changes(ed.State().Doc), track.Changes(back))
	})
}
