package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/core"
)

func TestSource_ForwardsAndFilters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 3)
	in <- core.Event{Type: core.EventModify, ID: "mine"}
	in <- core.Event{Type: core.EventCreate, ID: "theirs"}
	close(in)

	src := NewSource(in, ExceptDocument("mine"))
	require.NoError(t, src.Start(ctx))

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-src.Events():
			if !ok {
				assert.Equal(t, []string{"CREATE theirs"}, got)
				return
			}
			got = append(got, e.String())
		case <-timeout:
			t.Fatal("source did not close")
		}
	}
}

func TestWatch_Unsupported(t *testing.T) {
	svc := core.NewService(nil)
	_, err := Watch(context.Background(), svc, "**")
	assert.ErrorIs(t, err, core.ErrUnsupported)
}
