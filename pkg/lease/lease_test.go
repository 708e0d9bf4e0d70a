package lease_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	ttl := 30 * time.Second

	t.Run("First Writer Wins", func(t *testing.T) {
		s := lease.NewMemoryStore()
		l, err := s.Acquire(ctx, "d1", "alice", t0, ttl)
		require.NoError(t, err)
		assert.Equal(t, t0.Add(ttl), l.ExpiresAt)

		cur, err := s.Acquire(ctx, "d1", "bob", t0.Add(time.Second), ttl)
		assert.ErrorIs(t, err, core.ErrLocked)
		assert.Equal(t, "alice", cur.Holder)
	})

	t.Run("Same Holder Renews", func(t *testing.T) {
		s := lease.NewMemoryStore()
		_, err := s.Acquire(ctx, "d1", "alice", t0, ttl)
		require.NoError(t, err)
		l, err := s.Acquire(ctx, "d1", "alice", t0.Add(10*time.Second), ttl)
		require.NoError(t, err)
		assert.Equal(t, t0, l.AcquiredAt)
		assert.Equal(t, t0.Add(40*time.Second), l.ExpiresAt)
	})

	t.Run("Expired Lease Is Taken Over", func(t *testing.T) {
		s := lease.NewMemoryStore()
		_, err := s.Acquire(ctx, "d1", "alice", t0, ttl)
		require.NoError(t, err)
		l, err := s.Acquire(ctx, "d1", "bob", t0.Add(ttl), ttl)
		require.NoError(t, err)
		assert.Equal(t, "bob", l.Holder)
		assert.Equal(t, t0.Add(ttl), l.AcquiredAt)
	})

	t.Run("Release Only By Holder", func(t *testing.T) {
		s := lease.NewMemoryStore()
		_, err := s.Acquire(ctx, "d1", "alice", t0, ttl)
		require.NoError(t, err)

		require.NoError(t, s.Release(ctx, "d1", "bob"))
		l, err := s.Lease(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "alice", l.Holder)

		require.NoError(t, s.Release(ctx, "d1", "alice"))
		_, err = s.Lease(ctx, "d1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Empty ID", func(t *testing.T) {
		_, err := lease.NewMemoryStore().Acquire(ctx, "", "alice", t0, ttl)
		assert.ErrorIs(t, err, core.ErrEmptyID)
	})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeeper(t *testing.T) {
	ctx := context.Background()

	t.Run("Acquire Close Handover", func(t *testing.T) {
		store := lease.NewMemoryStore()
		clock := &fakeClock{now: t0}
		var events []bool
		alice := lease.NewKeeper(store, "d1", "alice", lease.WithClock(clock.Now), lease.OnChange(func(held bool, _ core.Lease) {
			events = append(events, held)
		}))
		bob := lease.NewKeeper(store, "d1", "bob", lease.WithClock(clock.Now))

		ok, err := alice.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, alice.Held())

		ok, err = bob.Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "alice", bob.Lease().Holder)

		require.NoError(t, alice.Close(ctx))
		assert.False(t, alice.Held())
		assert.Equal(t, []bool{true, false}, events)

		ok, err = bob.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Held Expires Without Renewal", func(t *testing.T) {
		clock := &fakeClock{now: t0}
		k := lease.NewKeeper(lease.NewMemoryStore(), "d1", "alice", lease.WithClock(clock.Now), lease.WithTTL(time.Minute))
		_, err := k.Acquire(ctx)
		require.NoError(t, err)
		clock.Advance(time.Minute)
		assert.False(t, k.Held())
	})

	t.Run("Background Renewal", func(t *testing.T) {
		store := lease.NewMemoryStore()
		k := lease.NewKeeper(store, "d1", "alice", lease.WithTTL(60*time.Millisecond))
		_, err := k.Acquire(ctx)
		require.NoError(t, err)
		first := k.Lease().ExpiresAt

		k.Start(ctx)
		require.Eventually(t, func() bool { return k.Lease().ExpiresAt.After(first) }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, k.Close(ctx))

		_, err = store.Lease(ctx, "d1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
