package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

func (r *Repository) leasePath(documentID string) string {
	return r.systemPath("leases", filepath.FromSlash(documentID)+".json")
}

func (r *Repository) readLease(documentID string) (core.Lease, bool, error) {
	data, err := os.ReadFile(r.leasePath(documentID))
	if os.IsNotExist(err) {
		return core.Lease{}, false, nil
	}
	if err != nil {
		return core.Lease{}, false, err
	}
	var l core.Lease
	if err := json.Unmarshal(data, &l); err != nil {
		// A torn lease file binds nobody.
		r.logger.Warn("ignoring corrupted lease", "document", documentID, "error", err)
		return core.Lease{}, false, nil
	}
	return l, true, nil
}

// Acquire implements core.LeaseStore. The check-and-set runs under the
// repository file lock, so it is atomic across processes sharing the root.
func (r *Repository) Acquire(ctx context.Context, documentID, holder string, now time.Time, ttl time.Duration) (core.Lease, error) {
	if r.config.ReadOnly {
		return core.Lease{}, core.ErrReadOnly
	}
	if err := r.validateID(documentID); err != nil {
		return core.Lease{}, err
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return core.Lease{}, err
	}
	defer unlock()

	cur, ok, err := r.readLease(documentID)
	if err != nil {
		return core.Lease{}, fmt.Errorf("failed to read lease: %w", err)
	}
	l, err := lease.Grant(cur, ok, documentID, holder, now, ttl)
	if err != nil {
		return l, err
	}
	if err := writeJSONAtomic(r.leasePath(documentID), l); err != nil {
		return core.Lease{}, fmt.Errorf("failed to write lease: %w", err)
	}
	return l, nil
}

// Release implements core.LeaseStore.
func (r *Repository) Release(ctx context.Context, documentID, holder string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := r.validateID(documentID); err != nil {
		return err
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok, err := r.readLease(documentID)
	if err != nil || !ok || cur.Holder != holder {
		return err
	}
	if err := os.Remove(r.leasePath(documentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lease: %w", err)
	}
	return nil
}

// Lease implements core.LeaseStore.
func (r *Repository) Lease(ctx context.Context, documentID string) (core.Lease, error) {
	if err := r.validateID(documentID); err != nil {
		return core.Lease{}, err
	}
	l, ok, err := r.readLease(documentID)
	if err != nil {
		return core.Lease{}, err
	}
	if !ok {
		return core.Lease{}, fmt.Errorf("lease %s: %w", documentID, core.ErrNotFound)
	}
	return l, nil
}
