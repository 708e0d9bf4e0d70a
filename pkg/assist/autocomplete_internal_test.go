package assist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

func TestAutocomplete_RequestContext(t *testing.T) {
	setup := func(t *testing.T, sel transform.Selection, gen Generator) *Autocomplete {
		t.Helper()
		ed := editor.New(doc.MustNew(doc.Paragraph(doc.Text("hello world"))))
		_, err := ed.Dispatch(ed.Begin().SetSelection(sel))
		require.NoError(t, err)
		a := NewAutocomplete(context.Background(), ed, gen, WithDebounce(time.Hour))
		t.Cleanup(a.Close)
		a.SetEnabled(true)
		return a
	}
	seqOf := func(a *Autocomplete) uint64 {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.seq
	}

	t.Run("Range Selection Holds Nothing", func(t *testing.T) {
		gen := GeneratorFunc(func(context.Context, Request) (Response, error) {
			t.Error("no request expected with a range selected")
			return Response{}, nil
		})
		a := setup(t, transform.Span(1, 6), gen)
		a.fire(seqOf(a))

		a.mu.Lock()
		defer a.mu.Unlock()
		assert.Nil(t, a.cancel)
	})

	t.Run("Delivered Request Is Released", func(t *testing.T) {
		var (
			mu     sync.Mutex
			reqCtx context.Context
		)
		gen := GeneratorFunc(func(ctx context.Context, _ Request) (Response, error) {
			mu.Lock()
			reqCtx = ctx
			mu.Unlock()
			return Response{Text: " again"}, nil
		})
		a := setup(t, transform.Cursor(12), gen)
		a.fire(seqOf(a))

		require.Eventually(t, func() bool {
			_, ok := a.Ghost()
			return ok
		}, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return reqCtx != nil && reqCtx.Err() != nil
		}, time.Second, 5*time.Millisecond)

		a.mu.Lock()
		defer a.mu.Unlock()
		assert.Nil(t, a.cancel)
	})
}
