// Package snapshot keeps point-in-time copies of documents. Every snapshot
// stores the markdown rendering; restore points (manual snapshots and the
// state after an AI edit) also keep the full tree so they can be loaded back
// into the editor.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
)

const (
	// DefaultLimit is the number of snapshots kept per document before the
	// oldest auto snapshots are pruned.
	DefaultLimit = 200
	// MinWords is the smallest document worth a snapshot.
	MinWords = 5

	promptLabelRunes = 50
	imagePlaceholder = "[image]"
)

var imageData = regexp.MustCompile(`data:image/[^)\s"']+`)

// ErrDifferentDocuments is returned when comparing snapshots of two documents.
var ErrDifferentDocuments = errors.New("snapshots belong to different documents")

// Label returns the default label of a trigger. prompt is only used for
// ai-after snapshots.
func Label(trigger core.Trigger, prompt string) string {
	switch trigger {
	case core.TriggerAuto:
		return "Auto-save"
	case core.TriggerManual:
		return "Manual snapshot"
	case core.TriggerAIBefore:
		return "Before AI edit"
	case core.TriggerAIAfter:
		r := []rune(prompt)
		if len(r) > promptLabelRunes {
			r = r[:promptLabelRunes]
		}
		return "AI: " + string(r)
	}
	return string(trigger)
}

// Service takes, lists and restores snapshots.
type Service struct {
	store   core.SnapshotStore
	limit   int
	clock   func() time.Time
	logger  *slog.Logger
	onTaken func(core.Trigger)

	mu   sync.Mutex
	last map[string]string // document ID -> markdown of the newest snapshot
}

// Option configures a Service.
type Option func(*Service)

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// OnTaken registers a callback invoked after each stored snapshot.
func OnTaken(fn func(core.Trigger)) Option {
	return func(s *Service) {
		s.onTaken = fn
	}
}

// New creates a snapshot service on store.
func New(store core.SnapshotStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		limit: DefaultLimit,
		clock: time.Now,
		last:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// StripImages replaces inline image data with a short placeholder.
func StripImages(s string) string {
	return imageData.ReplaceAllString(s, imagePlaceholder)
}

// Take stores a snapshot of d. It reports false without error when the
// document is too short or its markdown did not change since the last
// snapshot. An empty label selects the trigger's default.
func (s *Service) Take(ctx context.Context, documentID string, d *doc.Doc, trigger core.Trigger, label string) (core.Snapshot, bool, error) {
	if documentID == "" {
		return core.Snapshot{}, false, core.ErrEmptyID
	}
	if _, err := core.ParseTrigger(string(trigger)); err != nil {
		return core.Snapshot{}, false, err
	}
	markdown := StripImages(d.Markdown())

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastMarkdown(ctx, documentID)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	if markdown == last {
		s.logger.Debug("snapshot skipped: unchanged", "document", documentID, "trigger", trigger)
		return core.Snapshot{}, false, nil
	}
	words := d.WordCount()
	if words < MinWords {
		s.logger.Debug("snapshot skipped: too short", "document", documentID, "words", words)
		return core.Snapshot{}, false, nil
	}

	if label == "" {
		label = Label(trigger, "")
	}
	snap := core.Snapshot{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Trigger:    trigger,
		Label:      label,
		Markdown:   markdown,
		WordCount:  words,
		CreatedAt:  s.clock().UTC(),
	}
	if trigger.RestorePoint() {
		tree, err := d.MarshalJSON()
		if err != nil {
			return core.Snapshot{}, false, fmt.Errorf("failed to encode snapshot tree: %w", err)
		}
		snap.Tree = []byte(StripImages(string(tree)))
	}
	if err := s.store.AddSnapshot(ctx, snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to store snapshot: %w", err)
	}
	s.last[documentID] = markdown
	s.logger.Debug("snapshot taken", "document", documentID, "trigger", trigger, "id", snap.ID)
	if s.onTaken != nil {
		s.onTaken(trigger)
	}

	if err := s.prune(ctx, documentID); err != nil {
		s.logger.Warn("snapshot pruning failed", "document", documentID, "error", err)
	}
	return snap, true, nil
}

func (s *Service) lastMarkdown(ctx context.Context, documentID string) (string, error) {
	if md, ok := s.last[documentID]; ok {
		return md, nil
	}
	snaps, err := s.store.Snapshots(ctx, documentID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("failed to list snapshots: %w", err)
	}
	md := ""
	if len(snaps) > 0 {
		md = snaps[0].Markdown
	}
	s.last[documentID] = md
	return md, nil
}

// prune deletes the oldest auto snapshots while the document holds more
// than the limit. Other triggers are never pruned.
func (s *Service) prune(ctx context.Context, documentID string) error {
	snaps, err := s.store.Snapshots(ctx, documentID)
	if err != nil {
		return err
	}
	excess := len(snaps) - s.limit
	if excess <= 0 {
		return nil
	}
	var ids []string
	for i := len(snaps) - 1; i >= 0 && len(ids) < excess; i-- {
		if snaps[i].Trigger == core.TriggerAuto {
			ids = append(ids, snaps[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	s.logger.Debug("pruning snapshots", "document", documentID, "count", len(ids))
	return s.store.DeleteSnapshots(ctx, ids...)
}

// List returns the snapshots of a document, newest first.
func (s *Service) List(ctx context.Context, documentID string) ([]core.Snapshot, error) {
	return s.store.Snapshots(ctx, documentID)
}

// Get returns one snapshot.
func (s *Service) Get(ctx context.Context, id string) (core.Snapshot, error) {
	return s.store.Snapshot(ctx, id)
}

// Restore decodes the tree of a restore point.
func (s *Service) Restore(ctx context.Context, id string) (*doc.Doc, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snap.Restorable() {
		return nil, fmt.Errorf("snapshot %s: %w", id, core.ErrNotRestorePoint)
	}
	d, err := doc.ParseJSON(snap.Tree)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return d, nil
}

// Compare diffs the markdown of two snapshots of the same document.
func (s *Service) Compare(ctx context.Context, fromID, toID string) ([]Part, error) {
	a, err := s.store.Snapshot(ctx, fromID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Snapshot(ctx, toID)
	if err != nil {
		return nil, err
	}
	if a.DocumentID != b.DocumentID {
		return nil, ErrDifferentDocuments
	}
	return Diff(a.Markdown, b.Markdown), nil
}

// Forget drops the cached markdown of a document, e.g. after it was
// deleted or replaced outside this service.
func (s *Service) Forget(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, documentID)
}
