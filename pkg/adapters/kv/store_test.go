package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/core"
)

func openInMemory(t *testing.T) *LeaseStore {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestLeaseStore(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	ttl := 30 * time.Second

	l, err := s.Acquire(ctx, "essay", "alice", now, ttl)
	require.NoError(t, err)
	assert.Equal(t, "alice", l.Holder)

	cur, err := s.Acquire(ctx, "essay", "bob", now.Add(time.Second), ttl)
	assert.ErrorIs(t, err, core.ErrLocked)
	assert.Equal(t, "alice", cur.Holder)

	renewed, err := s.Acquire(ctx, "essay", "alice", now.Add(5*time.Second), ttl)
	require.NoError(t, err)
	assert.True(t, now.Equal(renewed.AcquiredAt))

	taken, err := s.Acquire(ctx, "essay", "bob", now.Add(time.Hour), ttl)
	require.NoError(t, err)
	assert.Equal(t, "bob", taken.Holder)

	all, err := s.Leases(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.Release(ctx, "essay", "alice"))
	got, err := s.Lease(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Holder)

	require.NoError(t, s.Release(ctx, "essay", "bob"))
	_, err = s.Lease(ctx, "essay")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Acquire(ctx, "", "bob", now, ttl)
	assert.ErrorIs(t, err, core.ErrEmptyID)

	state := s.State().(StoreState)
	assert.Equal(t, 3, state.Acquired)
	assert.Equal(t, 1, state.Refused)
}

func TestLeaseStore_SingleWinner(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	now := time.Now()

	holders := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, h := range holders {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			if _, err := s.Acquire(ctx, "essay", h, now, time.Minute); err == nil {
				mu.Lock()
				winners = append(winners, h)
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	l, err := s.Lease(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, winners[0], l.Holder)
}

func TestLeaseStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Now()

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	_, err = s.Acquire(ctx, "essay", "alice", now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	l, err := s.Lease(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, "alice", l.Holder)
}
