// Package kv implements core.LeaseStore on an embedded BadgerDB, for
// deployments where documents live in one store and session leases need a
// fast local arbiter shared by every process on the machine.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/dgraph-io/badger/v4"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

const leasePrefix = "lease/"

// maxConflictRetries bounds the retries of a lease check-and-set that lost
// a race against a concurrent transaction.
const maxConflictRetries = 5

// Config holds configuration for the lease store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool
	// Logger receives BadgerDB's own logs. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// LeaseStore is a core.LeaseStore backed by BadgerDB. Acquire runs in a
// serializable transaction, so concurrent callers see a consistent winner.
type LeaseStore struct {
	db     *badger.DB
	config Config

	mu       sync.Mutex
	acquired int
	refused  int
}

// Open opens the store.
func Open(cfg Config) (*LeaseStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent lease store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create lease store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &LeaseStore{db: db, config: cfg}, nil
}

// Close closes the database.
func (s *LeaseStore) Close() error {
	return s.db.Close()
}

func leaseKey(documentID string) []byte {
	return []byte(leasePrefix + documentID)
}

func getLease(txn *badger.Txn, documentID string) (core.Lease, bool, error) {
	item, err := txn.Get(leaseKey(documentID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.Lease{}, false, nil
	}
	if err != nil {
		return core.Lease{}, false, err
	}
	var l core.Lease
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &l)
	})
	if err != nil {
		return core.Lease{}, false, fmt.Errorf("decode lease %s: %w", documentID, err)
	}
	return l, true, nil
}

// Acquire implements core.LeaseStore.
func (s *LeaseStore) Acquire(ctx context.Context, documentID, holder string, now time.Time, ttl time.Duration) (core.Lease, error) {
	if documentID == "" {
		return core.Lease{}, core.ErrEmptyID
	}
	var (
		granted core.Lease
		err     error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Lease{}, ctxErr
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			cur, ok, err := getLease(txn, documentID)
			if err != nil {
				return err
			}
			granted, err = lease.Grant(cur, ok, documentID, holder, now, ttl)
			if err != nil {
				return err
			}
			data, err := json.Marshal(granted)
			if err != nil {
				return err
			}
			return txn.Set(leaseKey(documentID), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	s.count(err)
	if errors.Is(err, core.ErrLocked) {
		return granted, err
	}
	if err != nil {
		return core.Lease{}, fmt.Errorf("acquire lease on %s: %w", documentID, err)
	}
	return granted, nil
}

func (s *LeaseStore) count(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.acquired++
	case errors.Is(err, core.ErrLocked):
		s.refused++
	}
}

// Release implements core.LeaseStore.
func (s *LeaseStore) Release(ctx context.Context, documentID, holder string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		cur, ok, err := getLease(txn, documentID)
		if err != nil || !ok || cur.Holder != holder {
			return err
		}
		return txn.Delete(leaseKey(documentID))
	})
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", documentID, err)
	}
	return nil
}

// Lease implements core.LeaseStore.
func (s *LeaseStore) Lease(ctx context.Context, documentID string) (core.Lease, error) {
	var (
		l  core.Lease
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		l, ok, err = getLease(txn, documentID)
		return err
	})
	if err != nil {
		return core.Lease{}, err
	}
	if !ok {
		return core.Lease{}, fmt.Errorf("lease %s: %w", documentID, core.ErrNotFound)
	}
	return l, nil
}

// Leases lists every stored lease, expired ones included.
func (s *LeaseStore) Leases(ctx context.Context) ([]core.Lease, error) {
	var out []core.Lease
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(leasePrefix), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var l core.Lease
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &l)
			}); err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Path     string `json:"path,omitempty"`
	InMemory bool   `json:"in_memory"`
	Acquired int    `json:"acquired"`
	Refused  int    `json:"refused"`
}

// State implements introspection.Introspectable.
func (s *LeaseStore) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Path:     s.config.Path,
		InMemory: s.config.InMemory,
		Acquired: s.acquired,
		Refused:  s.refused,
	}
}

// ComponentType implements introspection.Component.
func (s *LeaseStore) ComponentType() string {
	return "badger-leases"
}

var (
	_ core.LeaseStore              = (*LeaseStore)(nil)
	_ introspection.Introspectable = (*LeaseStore)(nil)
	_ introspection.Component      = (*LeaseStore)(nil)
)
