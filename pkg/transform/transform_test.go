package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/transform"
)

func para(text string) *doc.Doc {
	return doc.MustNew(doc.Paragraph(doc.Text(text)))
}

func TestStepMap(t *testing.T) {
	// Replace [3, 5) with three positions.
	m := transform.NewStepMap(3, 2, 3)

	tests := []struct {
		name    string
		pos     int
		assoc   int
		want    int
		deleted bool
	}{
		{"Before", 1, 1, 1, false},
		{"At Start", 3, 1, 3, false},
		{"Inside", 4, 1, 6, true},
		{"Inside Left", 4, -1, 3, true},
		{"At End", 5, -1, 6, false},
		{"After", 8, 1, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.MapResult(tt.pos, tt.assoc)
			assert.Equal(t, tt.want, r.Pos)
			assert.Equal(t, tt.deleted, r.Deleted)
		})
	}

	t.Run("Insertion Assoc", func(t *testing.T) {
		ins := transform.NewStepMap(4, 0, 2)
		assert.Equal(t, 4, ins.Map(4, -1))
		assert.Equal(t, 6, ins.Map(4, 1))
	})

	t.Run("Invert", func(t *testing.T) {
		inv := m.Invert()
		assert.Equal(t, 5, inv.Map(6, 1), "end of the new content maps to the end of the old range")
		assert.Equal(t, 8, inv.Map(9, 1))
	})
}

func TestMapping(t *testing.T) {
	var mp transform.Mapping
	mp.Append(transform.NewStepMap(2, 0, 3)) // insert 3 at 2
	mp.Append(transform.NewStepMap(0, 1, 0)) // delete first position

	assert.Equal(t, 2, mp.Len())
	assert.Equal(t, 9, mp.Map(7, 1))
	assert.Equal(t, 6, mp.Slice(1).Map(7, 1))
	assert.Equal(t, 0, mp.Slice(5).Len())

	r := transform.Mapping{}
	r.Append(transform.NewStepMap(2, 4, 0))
	res := r.MapResult(3, 1)
	assert.True(t, res.Deleted)
	assert.Equal(t, 2, res.Pos)
}

func TestTransaction(t *testing.T) {
	t.Run("Steps And Mapping", func(t *testing.T) {
		d := para("hello world")
		tr := transform.New(d)
		require.NoError(t, tr.InsertText(6, ","))
		require.NoError(t, tr.Delete(1, 2))

		assert.True(t, tr.DocChanged())
		assert.Equal(t, "ello, world", tr.Doc().TextContent())
		assert.Same(t, d, tr.Before())
		assert.Equal(t, "hello, world", tr.DocBefore(1).TextContent())
		assert.Equal(t, 11, tr.Mapping().Map(11, 1))
		assert.Equal(t, transform.ProvenanceUser, tr.Provenance())
	})

	t.Run("No-op Edits Are Not Recorded", func(t *testing.T) {
		tr := transform.New(para("abc"))
		require.NoError(t, tr.Insert(2, nil))
		require.NoError(t, tr.AddMark(2, 2, doc.Mark{Type: doc.MarkBold}))
		assert.False(t, tr.DocChanged())
	})

	t.Run("Failed Step Leaves State", func(t *testing.T) {
		tr := transform.New(para("abc"))
		err := tr.Delete(0, 99)
		assert.ErrorIs(t, err, doc.ErrOutOfRange)
		assert.False(t, tr.DocChanged())
	})

	t.Run("Node Attributes Merge", func(t *testing.T) {
		d := doc.MustNew(doc.Paragraph(), doc.Leaf(doc.TypeDiagram, doc.Attrs{"prompt": "x", "generating": true}))
		tr := transform.New(d)
		require.NoError(t, tr.SetNodeAttrs(2, doc.Attrs{"generating": false}))
		n, err := tr.Doc().NodeAt(2)
		require.NoError(t, err)
		assert.Equal(t, "x", n.Attrs.String("prompt"))
		assert.False(t, n.Attrs.Bool("generating"))
	})

	t.Run("Meta And Selection", func(t *testing.T) {
		tr := transform.New(para("abc")).SetProvenance(transform.ProvenanceSystem).SetMeta("k", 1)
		_, ok := tr.Selection()
		assert.False(t, ok)
		tr.SetSelection(transform.Cursor(2))
		sel, ok := tr.Selection()
		assert.True(t, ok)
		assert.True(t, sel.Empty())
		assert.Equal(t, 1, tr.Meta("k"))
		assert.Equal(t, "system-correction", tr.Provenance().String())
	})
}

func TestInvert(t *testing.T) {
	d := para("hello world")

	steps := []transform.Step{
		transform.ReplaceStep{From: 1, To: 6, Content: doc.Text("goodbye")},
		transform.AddMarkStep{From: 1, To: 6, Mark: doc.Mark{Type: doc.MarkItalic}},
		transform.RemoveMarkStep{From: 1, To: 6, Type: doc.MarkItalic},
	}
	for _, s := range steps {
		t.Run(s.(interface{ String() string }).String(), func(t *testing.T) {
			after, err := s.Apply(d)
			require.NoError(t, err)
			inv, err := s.Invert(d)
			require.NoError(t, err)
			back, err := inv.Apply(after)
			require.NoError(t, err)
			assert.True(t, back.Equal(d))
		})
	}

	t.Run("Set Attrs", func(t *testing.T) {
		withNode := doc.MustNew(doc.Leaf(doc.TypeImage, doc.Attrs{"src": "a.png"}))
		s := transform.SetAttrsStep{Pos: 0, Attrs: doc.Attrs{"src": "b.png"}}
		after, err := s.Apply(withNode)
		require.NoError(t, err)
		inv, err := s.Invert(withNode)
		require.NoError(t, err)
		back, err := inv.Apply(after)
		require.NoError(t, err)
		assert.True(t, back.Equal(withNode))
	})
}

func TestSelection(t *testing.T) {
	s := transform.Span(8, 3)
	assert.Equal(t, 3, s.From())
	assert.Equal(t, 8, s.To())
	assert.False(t, s.Empty())

	var mp transform.Mapping
	mp.Append(transform.NewStepMap(0, 0, 2))
	assert.Equal(t, transform.Span(10, 5), s.Map(mp))
	assert.Equal(t, transform.Span(4, 3), s.Clamp(4))
}
