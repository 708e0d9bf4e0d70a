package doc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/doc"
)

func TestJSON_RoundTrip(t *testing.T) {
	d := doc.MustNew(
		doc.Heading(1, doc.Text("Draft")),
		doc.Paragraph(
			doc.Text("see "),
			doc.Text("docs", doc.Mark{Type: doc.MarkLink, Href: "https://example.com"}),
			doc.Text(" now", doc.Mark{Type: doc.MarkInsertion, Timestamp: 1700000000000}),
		),
		doc.Leaf(doc.TypeGeneratedImage, doc.Attrs{"prompt": "a cat", "generating": true}),
	)

	data, err := json.Marshal(d)
	require.NoError(t, err)

	parsed, err := doc.ParseJSON(data)
	require.NoError(t, err)
	assert.True(t, d.Equal(parsed), "round trip should preserve the document")

	var viaUnmarshal doc.Doc
	require.NoError(t, json.Unmarshal(data, &viaUnmarshal))
	assert.True(t, d.Equal(&viaUnmarshal))
}

func TestJSON_Decode(t *testing.T) {
	t.Run("Tree Format", func(t *testing.T) {
		raw := `{"type":"doc","content":[
			{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Hi"}]},
			{"type":"paragraph","content":[{"type":"text","text":"x","marks":[{"type":"deletion","attrs":{"timestamp":5}}]}]}
		]}`
		d, err := doc.ParseJSON([]byte(raw))
		require.NoError(t, err)

		n, err := d.NodeAt(0)
		require.NoError(t, err)
		level, ok := n.Attrs.Int("level")
		require.True(t, ok)
		assert.Equal(t, 2, level)

		runs := d.Runs()
		require.Len(t, runs, 2)
		assert.True(t, runs[1].Marks.Has(doc.MarkDeletion))
		assert.Equal(t, int64(5), runs[1].Marks.DeletedAt)
	})

	t.Run("Unknown Node", func(t *testing.T) {
		_, err := doc.ParseJSON([]byte(`{"type":"doc","content":[{"type":"widget"}]}`))
		assert.ErrorIs(t, err, doc.ErrUnknownNodeType)
	})

	t.Run("Wrong Root", func(t *testing.T) {
		_, err := doc.ParseJSON([]byte(`{"type":"paragraph"}`))
		assert.ErrorIs(t, err, doc.ErrInvalidStructure)
	})
}

func TestMarkdown(t *testing.T) {
	d := doc.MustNew(
		doc.Heading(1, doc.Text("Title")),
		doc.Paragraph(doc.Text("plain "), doc.Text("bold", doc.Mark{Type: doc.MarkBold}), doc.Text(" and "), doc.Text("hi", doc.Mark{Type: doc.MarkHighlight})),
		doc.Block(doc.TypeOrderedList, nil,
			doc.Block(doc.TypeListItem, nil, doc.Paragraph(doc.Text("first"))),
			doc.Block(doc.TypeListItem, nil, doc.Paragraph(doc.Text("second"))),
		),
		doc.Block(doc.TypeTaskList, nil,
			doc.Block(doc.TypeTaskItem, doc.Attrs{"checked": true}, doc.Paragraph(doc.Text("done"))),
		),
		doc.Block(doc.TypeBlockquote, nil, doc.Paragraph(doc.Text("quoted"))),
		doc.Leaf(doc.TypeHorizontalRule, nil),
		doc.Block(doc.TypeTable, nil,
			doc.Block(doc.TypeTableRow, nil,
				doc.Block(doc.TypeTableHeader, nil, doc.Paragraph(doc.Text("a"))),
				doc.Block(doc.TypeTableHeader, nil, doc.Paragraph(doc.Text("b"))),
			),
			doc.Block(doc.TypeTableRow, nil,
				doc.Block(doc.TypeTableCell, nil, doc.Paragraph(doc.Text("1"))),
				doc.Block(doc.TypeTableCell, nil, doc.Paragraph(doc.Text("2"))),
			),
		),
	)

	want := "# Title\n\n" +
		"plain **bold** and ==hi==\n\n" +
		"1. first\n2. second\n" +
		"- [x] done\n" +
		"> quoted\n\n" +
		"---\n\n" +
		"| a | b |\n| --- | --- |\n| 1 | 2 |\n"
	assert.Equal(t, want, d.Markdown())
}

func TestFromMarkdown(t *testing.T) {
	d, err := doc.FromMarkdown("# Title\n\nfirst line\nsecond line\n\n## Part\n\n---\n")
	require.NoError(t, err)

	assert.Equal(t, "Title\nfirst line second line\nPart", d.TextContent())
	n, err := d.NodeAt(0)
	require.NoError(t, err)
	assert.Equal(t, doc.TypeHeading, n.Type)

	empty, err := doc.FromMarkdown("  \n")
	require.NoError(t, err)
	assert.True(t, empty.Equal(doc.Default()))
}
