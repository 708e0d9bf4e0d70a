package core_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

// MockRepository implements core.Repository in memory.
// It deliberately does NOT implement core.LeaseStore to test fallback/errors.
type MockRepository struct {
	docs  map[string]core.Document
	snaps map[string]core.Snapshot
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		docs:  make(map[string]core.Document),
		snaps: make(map[string]core.Snapshot),
	}
}

func (m *MockRepository) Save(ctx context.Context, d core.Document) error {
	m.docs[d.ID] = d
	return nil
}

func (m *MockRepository) Get(ctx context.Context, id string) (core.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	return d, nil
}

func (m *MockRepository) List(ctx context.Context) ([]core.Document, error) {
	var docs []core.Document
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	// Sort for deterministic tests
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

func (m *MockRepository) AddSnapshot(ctx context.Context, s core.Snapshot) error {
	m.snaps[s.ID] = s
	return nil
}

func (m *MockRepository) Snapshot(ctx context.Context, id string) (core.Snapshot, error) {
	s, ok := m.snaps[id]
	if !ok {
		return core.Snapshot{}, core.ErrNotFound
	}
	return s, nil
}

func (m *MockRepository) Snapshots(ctx context.Context, documentID string) ([]core.Snapshot, error) {
	var out []core.Snapshot
	for _, s := range m.snaps {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockRepository) DeleteSnapshots(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		delete(m.snaps, id)
	}
	return nil
}

func TestService_CRUD(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo)
	ctx := context.TODO()

	// 1. Save
	err := service.SaveDocument(ctx, core.Document{ID: "doc1", Title: "One", Tree: []byte(`{"type":"doc"}`)})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	// 2. Get
	d, err := service.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if d.Title != "One" {
		t.Errorf("expected title 'One', got '%s'", d.Title)
	}
	if d.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be stamped")
	}

	// 3. List
	_ = service.SaveDocument(ctx, core.Document{ID: "doc2"})
	docs, err := service.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}

	// 4. Delete cascades to snapshots
	_ = repo.AddSnapshot(ctx, core.Snapshot{ID: "s1", DocumentID: "doc1"})
	_ = repo.AddSnapshot(ctx, core.Snapshot{ID: "s2", DocumentID: "doc2"})
	err = service.DeleteDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	_, err = service.GetDocument(ctx, "doc1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after deletion, got %v", err)
	}
	if _, ok := repo.snaps["s1"]; ok {
		t.Error("expected snapshot s1 to be deleted")
	}
	if _, ok := repo.snaps["s2"]; !ok {
		t.Error("expected snapshot s2 to survive")
	}
}

func TestService_Validation(t *testing.T) {
	service := core.NewService(NewMockRepository())
	ctx := context.TODO()

	tests := []struct {
		name string
		doc  core.Document
	}{
		{"Empty ID", core.Document{}},
		{"Invalid Tree", core.Document{ID: "x", Tree: []byte(`{"type":`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := service.SaveDocument(ctx, tt.doc); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if _, err := service.GetDocument(ctx, ""); !errors.Is(err, core.ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestService_Capabilities(t *testing.T) {
	service := core.NewService(NewMockRepository())

	if _, err := service.Snapshots(); err != nil {
		t.Errorf("expected snapshot support, got %v", err)
	}
	if _, err := service.Leases(); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for leases, got %v", err)
	}
	if _, err := service.Watch(context.TODO(), "*"); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for watch, got %v", err)
	}

	state, ok := service.State().(core.ServiceState)
	if !ok {
		t.Fatalf("unexpected state type %T", service.State())
	}
	if !state.Snapshots || state.Leases {
		t.Errorf("unexpected capabilities: %+v", state)
	}
}

func TestService_WithLeaseStore(t *testing.T) {
	store := lease.NewMemoryStore()
	service := core.NewService(NewMockRepository(), core.WithLeaseStore(store))

	got, err := service.Leases()
	if err != nil {
		t.Fatalf("expected lease store, got %v", err)
	}
	if got != core.LeaseStore(store) {
		t.Error("expected the configured lease store")
	}
	if state := service.State().(core.ServiceState); !state.Leases {
		t.Errorf("expected lease capability, got %+v", state)
	}
}

func TestDomain(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := core.Lease{ExpiresAt: now.Add(time.Second)}
	if l.Expired(now) {
		t.Error("lease should still be valid")
	}
	if !l.Expired(now.Add(time.Second)) {
		t.Error("lease should expire at ExpiresAt")
	}

	for _, name := range []string{"auto", "manual", "ai-before", "ai-after"} {
		if _, err := core.ParseTrigger(name); err != nil {
			t.Errorf("ParseTrigger(%q): %v", name, err)
		}
	}
	if _, err := core.ParseTrigger("cron"); err == nil {
		t.Error("expected error for unknown trigger")
	}
	if !core.TriggerAIAfter.RestorePoint() || core.TriggerAuto.RestorePoint() {
		t.Error("unexpected restore point classification")
	}
	if got := (core.Event{Type: core.EventModify, ID: "a"}).String(); got != "MODIFY a" {
		t.Errorf("unexpected event string %q", got)
	}
}

type closingRepository struct {
	*MockRepository
	closed int
	err    error
}

func (c *closingRepository) Close() error {
	c.closed++
	return c.err
}

func TestService_Close(t *testing.T) {
	if err := core.NewService(NewMockRepository()).Close(); err != nil {
		t.Fatalf("closing a plain repository: %v", err)
	}

	repo := &closingRepository{MockRepository: NewMockRepository(), err: errors.New("disk gone")}
	err := core.NewService(repo, core.WithLeaseStore(lease.NewMemoryStore())).Close()
	if repo.closed != 1 {
		t.Errorf("expected one close, got %d", repo.closed)
	}
	if err == nil || err.Error() != "disk gone" {
		t.Errorf("expected the repository error, got %v", err)
	}
}
