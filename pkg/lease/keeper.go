package lease

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/marginalia/pkg/core"
)

// Keeper holds one lease on behalf of a session: it acquires it, renews it
// every third of its TTL and keeps retrying while another session holds it.
type Keeper struct {
	store      core.LeaseStore
	documentID string
	holder     string
	ttl        time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	onChange   func(held bool, l core.Lease)

	mu      sync.Mutex
	held    bool
	current core.Lease
	cancel  context.CancelFunc
	done    chan struct{}
}

// KeeperOption configures a Keeper.
type KeeperOption func(*Keeper)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) KeeperOption {
	return func(k *Keeper) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) KeeperOption {
	return func(k *Keeper) {
		k.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) KeeperOption {
	return func(k *Keeper) {
		k.logger = logger
	}
}

// OnChange registers a callback for gaining or losing the lease.
func OnChange(fn func(held bool, l core.Lease)) KeeperOption {
	return func(k *Keeper) {
		k.onChange = fn
	}
}

// NewKeeper creates a keeper for holder on documentID.
func NewKeeper(store core.LeaseStore, documentID, holder string, opts ...KeeperOption) *Keeper {
	k := &Keeper{
		store:      store,
		documentID: documentID,
		holder:     holder,
		ttl:        DefaultTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return k
}

// Holder returns the identity the keeper acquires leases for.
func (k *Keeper) Holder() string { return k.holder }

// Acquire makes one acquisition or renewal attempt. A lease held by someone
// else is reported as false without error.
func (k *Keeper) Acquire(ctx context.Context) (bool, error) {
	l, err := k.store.Acquire(ctx, k.documentID, k.holder, k.clock(), k.ttl)
	switch {
	case err == nil:
		k.set(true, l)
		return true, nil
	case errors.Is(err, core.ErrLocked):
		k.logger.Debug("document locked", "document", k.documentID, "holder", l.Holder, "expires", l.ExpiresAt)
		k.set(false, l)
		return false, nil
	default:
		return k.Held(), err
	}
}

func (k *Keeper) set(held bool, l core.Lease) {
	k.mu.Lock()
	changed := held != k.held
	k.held, k.current = held, l
	k.mu.Unlock()
	if changed {
		k.logger.Info("lease changed", "document", k.documentID, "held", held)
		if k.onChange != nil {
			k.onChange(held, l)
		}
	}
}

// Held reports whether the keeper owns the lease as of its last attempt.
func (k *Keeper) Held() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held && !k.current.Expired(k.clock())
}

// Lease returns the lease seen by the last attempt, which may belong to
// another holder.
func (k *Keeper) Lease() core.Lease {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// Start renews the lease in the background until Close or ctx ends.
func (k *Keeper) Start(ctx context.Context) {
	k.mu.Lock()
	if k.cancel != nil {
		k.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	k.cancel, k.done = cancel, done
	k.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(done)
		ticker := time.NewTicker(k.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := k.Acquire(ctx); err != nil && ctx.Err() == nil {
					k.logger.Warn("lease renewal failed", "document", k.documentID, "error", err)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		k.logger.Error("lease keeper stopped", "document", k.documentID, "error", err)
	}))
}

// Close stops renewal and releases the lease if held.
func (k *Keeper) Close(ctx context.Context) error {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	held := k.held
	k.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if !held {
		return nil
	}
	k.set(false, core.Lease{})
	return k.store.Release(ctx, k.documentID, k.holder)
}
