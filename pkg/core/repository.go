package core

import (
	"context"
	"time"
)

// Repository defines the contract for storing and retrieving documents.
// Adhering to this interface allows the core to be independent of the
// underlying storage mechanism (Filesystem, Git, SQL).
type Repository interface {
	// Save persists a document. It creates if not exists, or updates if it does.
	Save(ctx context.Context, d Document) error

	// Get retrieves a document by its ID. Missing documents yield ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// List returns the headers of all documents. Adapters may leave Tree and
	// Markdown empty; Get returns the full document.
	List(ctx context.Context) ([]Document, error)

	// Delete removes a document by its ID.
	Delete(ctx context.Context, id string) error

	// Initialize ensures the underlying storage is ready (e.g., create directories, git init, schema migration).
	Initialize(ctx context.Context) error
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	AddSnapshot(ctx context.Context, s Snapshot) error
	// Snapshot retrieves one snapshot by ID.
	Snapshot(ctx context.Context, id string) (Snapshot, error)
	// Snapshots lists the snapshots of a document, newest first.
	Snapshots(ctx context.Context, documentID string) ([]Snapshot, error)
	DeleteSnapshots(ctx context.Context, ids ...string) error
}

// LeaseStore arbitrates document leases. Acquire must be an atomic
// check-and-set: it succeeds when no lease exists, the existing one expired
// at now, or holder already owns it (a renewal). Otherwise it returns
// ErrLocked together with the current lease.
type LeaseStore interface {
	Acquire(ctx context.Context, documentID, holder string, now time.Time, ttl time.Duration) (Lease, error)
	// Release drops the lease if holder owns it.
	Release(ctx context.Context, documentID, holder string) error
	// Lease returns the current lease, ErrNotFound when there is none.
	Lease(ctx context.Context, documentID string) (Lease, error)
}

// Watchable defines an interface for repositories that can report changes.
type Watchable interface {
	// Watch emits events for document IDs matching pattern until ctx ends.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// Syncable defines an interface for repositories that support synchronization with a remote.
type Syncable interface {
	// Sync synchronizes the local state with a remote source (e.g. git pull/push).
	Sync(ctx context.Context) error
}

type contextKey string

// ChangeReasonKey is the context key for passing specific change reasons (commit messages) during Save/Delete operations.
const ChangeReasonKey contextKey = "change_reason"

// WithChangeReason attaches a change reason to ctx.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ChangeReasonKey, reason)
}

// ChangeReason reads the change reason from ctx, or def when unset.
func ChangeReason(ctx context.Context, def string) string {
	if v, ok := ctx.Value(ChangeReasonKey).(string); ok && v != "" {
		return v
	}
	return def
}
