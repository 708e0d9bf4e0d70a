package assist_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func typeAt(t *testing.T, ed *editor.Editor, text string) {
	t.Helper()
	_, err := ed.Update(func(s editor.State) (*transform.Transaction, error) {
		tr := transform.New(s.Doc)
		return tr, tr.InsertText(s.Selection.Head, text)
	})
	require.NoError(t, err)
}

func moveTo(t *testing.T, ed *editor.Editor, pos int) {
	t.Helper()
	tr := ed.Begin()
	tr.SetSelection(transform.Cursor(pos))
	_, err := ed.Dispatch(tr)
	require.NoError(t, err)
}

// onceGenerator answers the first call and blocks every later one until
// its context ends.
type onceGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *onceGenerator) Generate(ctx context.Context, _ assist.Request) (assist.Response, error) {
	n := g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return assist.Response{}, ctx.Err()
		}
	}
	if n > 1 {
		<-ctx.Done()
		return assist.Response{}, ctx.Err()
	}
	return assist.Response{Text: " and more"}, nil
}

// lateGenerator ignores cancellation: every call waits for release. Only
// the first call has anything to say.
type lateGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *lateGenerator) Generate(context.Context, assist.Request) (assist.Response, error) {
	n := g.calls.Add(1)
	<-g.release
	if n > 1 {
		return assist.Response{}, nil
	}
	return assist.Response{Text: " and more"}, nil
}

func newAutocomplete(t *testing.T, ed *editor.Editor, gen assist.Generator, tracker *assist.Tracker) *assist.Autocomplete {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ac := assist.NewAutocomplete(ctx, ed, gen,
		assist.WithDebounce(10*time.Millisecond),
		assist.WithAutocompleteTracker(tracker),
	)
	t.Cleanup(func() {
		ac.Close()
		cancel()
	})
	ac.SetEnabled(true)
	return ac
}

func TestAutocomplete(t *testing.T) {
	t.Run("Shows Ghost And Accepts It", func(t *testing.T) {
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, &onceGenerator{}, nil)
		moveTo(t, ed, 19)
		typeAt(t, ed, "!")

		require.Eventually(t, func() bool { _, ok := ac.Ghost(); return ok }, waitFor, tick)
		g, _ := ac.Ghost()
		assert.Equal(t, assist.Ghost{Anchor: 20, Text: " and more"}, g)
		// The ghost is not part of the document.
		assert.Equal(t, "Title\nhello world!", ed.State().Doc.TextContent())

		ok, err := ac.Accept()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Title\nhello world! and more", ed.State().Doc.TextContent())
		assert.Equal(t, transform.Cursor(29), ed.State().Selection)
		_, has := ac.Ghost()
		assert.False(t, has)
	})

	t.Run("Document Change Clears Ghost", func(t *testing.T) {
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, &onceGenerator{}, nil)
		moveTo(t, ed, 19)
		typeAt(t, ed, "!")
		require.Eventually(t, func() bool { _, ok := ac.Ghost(); return ok }, waitFor, tick)

		typeAt(t, ed, "?")
		_, has := ac.Ghost()
		assert.False(t, has)
	})

	t.Run("Moved Cursor Drops Result", func(t *testing.T) {
		gen := &onceGenerator{release: make(chan struct{})}
		tracker := assist.NewTracker(nil)
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, gen, tracker)
		moveTo(t, ed, 19)
		typeAt(t, ed, "!")

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 1 }, waitFor, tick)
		sent := ed.State().Doc
		moveTo(t, ed, 8)
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		_, has := ac.Ghost()
		assert.False(t, has)
		assert.True(t, ed.State().Doc.Equal(sent))
		assert.Equal(t, "Title\nhello world!", ed.State().Doc.TextContent())
	})

	t.Run("Edit During Request Drops Late Result", func(t *testing.T) {
		gen := &lateGenerator{release: make(chan struct{})}
		tracker := assist.NewTracker(nil)
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, gen, tracker)
		moveTo(t, ed, 19)
		typeAt(t, ed, "!")
		require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, waitFor, tick)

		typeAt(t, ed, "?")
		edited := ed.State().Doc
		require.Eventually(t, func() bool { return gen.calls.Load() == 2 }, waitFor, tick)
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		_, has := ac.Ghost()
		assert.False(t, has)
		assert.True(t, ed.State().Doc.Equal(edited))
		assert.Equal(t, "Title\nhello world!?", ed.State().Doc.TextContent())
	})

	t.Run("Disabling Aborts In-Flight Request", func(t *testing.T) {
		var statuses atomic.Value
		tracker := assist.NewTracker(func(_ string, s assist.Status, _ time.Duration) { statuses.Store(s) })
		gen := &onceGenerator{release: make(chan struct{})}
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, gen, tracker)
		typeAt(t, ed, "x")

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 1 }, waitFor, tick)
		ac.SetEnabled(false)
		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		assert.Equal(t, assist.StatusDropped, statuses.Load())
		assert.False(t, ac.Enabled())
	})

	t.Run("Disabled Sends Nothing", func(t *testing.T) {
		gen := &onceGenerator{}
		ed := editor.New(sample())
		ac := newAutocomplete(t, ed, gen, nil)
		ac.SetEnabled(false)
		typeAt(t, ed, "x")
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, gen.calls.Load())
	})
}

// gatedImages answers once release is closed.
type gatedImages struct {
	release chan struct{}
	result  assist.ImageResult
	err     error
}

func (g *gatedImages) GenerateImage(ctx context.Context, _ assist.ImageRequest) (assist.ImageResult, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return assist.ImageResult{}, ctx.Err()
	}
	return g.result, g.err
}

func countPlaceholders(d *doc.Doc) int {
	n := 0
	d.Descendants(func(node doc.Node) bool {
		if node.Type == doc.TypeGeneratedImage || node.Type == doc.TypeDiagram {
			n++
		}
		return true
	})
	return n
}

func TestPlaceholders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	t.Run("Fills The Node Wherever It Moved", func(t *testing.T) {
		gen := &gatedImages{release: make(chan struct{}), result: assist.ImageResult{URL: "https://img/1.png"}}
		tracker := assist.NewTracker(nil)
		ed := editor.New(sample())
		ph := assist.NewPlaceholders(ed, gen, tracker, nil)

		key, err := ph.Insert(ctx, assist.ImageKindImage, "a lighthouse")
		require.NoError(t, err)
		pos, ok := assist.Find(ed.State().Doc, key)
		require.True(t, ok)
		assert.Equal(t, 7, pos)
		require.Len(t, tracker.Pending(), 1)
		assert.Equal(t, key.RequestID, tracker.Pending()[0].ID)

		typeAt(t, ed, "Big ")
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		n, err := ed.State().Doc.NodeAt(11)
		require.NoError(t, err)
		assert.Equal(t, doc.TypeGeneratedImage, n.Type)
		assert.Equal(t, "https://img/1.png", n.Attrs.String("src"))
		assert.False(t, n.Attrs.Bool("generating"))
		assert.Equal(t, "a lighthouse", n.Attrs.String("prompt"))
	})

	t.Run("Diagram Stores Shapes", func(t *testing.T) {
		shapes := json.RawMessage(`[{"type":"box"}]`)
		gen := &gatedImages{release: make(chan struct{}), result: assist.ImageResult{Shapes: shapes}}
		tracker := assist.NewTracker(nil)
		ed := editor.New(sample())
		ph := assist.NewPlaceholders(ed, gen, tracker, nil)

		_, err := ph.Insert(ctx, assist.ImageKindDiagram, "flow")
		require.NoError(t, err)
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		n, err := ed.State().Doc.NodeAt(7)
		require.NoError(t, err)
		assert.Equal(t, doc.TypeDiagram, n.Type)
		assert.Equal(t, `[{"type":"box"}]`, n.Attrs.String("snapshot"))
	})

	t.Run("Failure Removes The Node", func(t *testing.T) {
		gen := &gatedImages{release: make(chan struct{}), err: errors.New("quota")}
		var final atomic.Value
		tracker := assist.NewTracker(func(_ string, s assist.Status, _ time.Duration) { final.Store(s) })
		ed := editor.New(sample())
		ph := assist.NewPlaceholders(ed, gen, tracker, nil)

		_, err := ph.Insert(ctx, assist.ImageKindImage, "a cat")
		require.NoError(t, err)
		assert.Equal(t, 1, countPlaceholders(ed.State().Doc))
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		assert.Zero(t, countPlaceholders(ed.State().Doc))
		assert.True(t, ed.State().Doc.Equal(sample()))
		assert.Equal(t, assist.StatusFailed, final.Load())
	})

	t.Run("Removed Node Drops The Result", func(t *testing.T) {
		gen := &gatedImages{release: make(chan struct{}), result: assist.ImageResult{URL: "u"}}
		var final atomic.Value
		tracker := assist.NewTracker(func(_ string, s assist.Status, _ time.Duration) { final.Store(s) })
		ed := editor.New(sample())
		ph := assist.NewPlaceholders(ed, gen, tracker, nil)

		key, err := ph.Insert(ctx, assist.ImageKindImage, "a dog")
		require.NoError(t, err)
		pos, _ := assist.Find(ed.State().Doc, key)
		tr := ed.Begin()
		require.NoError(t, tr.Delete(pos, pos+1))
		_, err = ed.Dispatch(tr)
		require.NoError(t, err)
		close(gen.release)

		require.Eventually(t, func() bool { return len(tracker.Pending()) == 0 }, waitFor, tick)
		assert.True(t, ed.State().Doc.Equal(sample()))
		assert.Equal(t, assist.StatusDropped, final.Load())
	})
}
