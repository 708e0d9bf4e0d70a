package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Service handles the business logic for documents.
type Service struct {
	repo   Repository
	leases LeaseStore
	clock  func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLeaseStore arbitrates leases in store instead of the repository.
func WithLeaseStore(store LeaseStore) ServiceOption {
	return func(s *Service) { s.leases = store }
}

// NewService creates a new Service.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() Repository { return s.repo }

// SaveDocument saves a document with business validation. UpdatedAt is
// stamped when zero.
func (s *Service) SaveDocument(ctx context.Context, d Document) error {
	if d.ID == "" {
		return ErrEmptyID
	}
	if len(d.Tree) > 0 && !json.Valid(d.Tree) {
		return fmt.Errorf("document %s: tree is not valid JSON", d.ID)
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.clock().UTC()
	}
	return s.repo.Save(ctx, d)
}

// GetDocument retrieves a document.
func (s *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	if id == "" {
		return Document{}, ErrEmptyID
	}
	return s.repo.Get(ctx, id)
}

// ListDocuments retrieves all documents.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// DeleteDocument removes a document and, when supported, its snapshots.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if store, ok := s.repo.(SnapshotStore); ok {
		snaps, err := store.Snapshots(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		ids := make([]string, 0, len(snaps))
		for _, sn := range snaps {
			ids = append(ids, sn.ID)
		}
		if len(ids) > 0 {
			if err := store.DeleteSnapshots(ctx, ids...); err != nil {
				return err
			}
		}
	}
	return s.repo.Delete(ctx, id)
}

// Snapshots returns the snapshot store of the repository.
func (s *Service) Snapshots() (SnapshotStore, error) {
	store, ok := s.repo.(SnapshotStore)
	if !ok {
		return nil, fmt.Errorf("snapshots: %w", ErrUnsupported)
	}
	return store, nil
}

// Leases returns the configured lease store, else the repository's own.
func (s *Service) Leases() (LeaseStore, error) {
	if s.leases != nil {
		return s.leases, nil
	}
	store, ok := s.repo.(LeaseStore)
	if !ok {
		return nil, fmt.Errorf("leases: %w", ErrUnsupported)
	}
	return store, nil
}

// Watch observes changes in the repository if supported.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, fmt.Errorf("watch: %w", ErrUnsupported)
	}
	return w.Watch(ctx, pattern)
}

// Sync synchronizes with the remote if supported.
func (s *Service) Sync(ctx context.Context) error {
	syncer, ok := s.repo.(Syncable)
	if !ok {
		return fmt.Errorf("sync: %w", ErrUnsupported)
	}
	return syncer.Sync(ctx)
}

// Close releases the repository and the lease store when they hold
// resources such as database handles.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.leases.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.repo.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
