// Package lease implements the advisory document lock: a time-boxed lease
// held by one editing session and renewed while the session lives. The lock
// is cooperative; it stops a second session from saving, not from reading.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
)

// DefaultTTL is how long a lease stays binding without renewal.
const DefaultTTL = 30 * time.Second

// Grant decides an acquisition against the current lease. exists reports
// whether current is set. The first writer wins: an unexpired lease of
// another holder refuses the request with core.ErrLocked and is returned
// unchanged. The same holder renews, keeping its AcquiredAt.
func Grant(current core.Lease, exists bool, documentID, holder string, now time.Time, ttl time.Duration) (core.Lease, error) {
	if exists && current.Holder != holder && !current.Expired(now) {
		return current, core.ErrLocked
	}
	l := core.Lease{
		DocumentID: documentID,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	if exists && current.Holder == holder && !current.Expired(now) {
		l.AcquiredAt = current.AcquiredAt
	}
	return l, nil
}

// MemoryStore is a process-local core.LeaseStore.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]core.Lease
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]core.Lease)}
}

func (s *MemoryStore) Acquire(_ context.Context, documentID, holder string, now time.Time, ttl time.Duration) (core.Lease, error) {
	if documentID == "" {
		return core.Lease{}, core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[documentID]
	l, err := Grant(cur, ok, documentID, holder, now, ttl)
	if err != nil {
		return l, err
	}
	s.leases[documentID] = l
	return l, nil
}

func (s *MemoryStore) Release(_ context.Context, documentID, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[documentID]; ok && cur.Holder == holder {
		delete(s.leases, documentID)
	}
	return nil
}

func (s *MemoryStore) Lease(_ context.Context, documentID string) (core.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[documentID]
	if !ok {
		return core.Lease{}, core.ErrNotFound
	}
	return l, nil
}

var _ core.LeaseStore = (*MemoryStore)(nil)
