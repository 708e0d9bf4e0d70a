package session

import (
	"context"
	"fmt"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/snapshot"
	"github.com/aretw0/marginalia/pkg/track"
	"github.com/aretw0/marginalia/pkg/transform"
)

// Changes lists the tracked changes of the current document.
func (s *Session) Changes() []track.Change {
	return track.Changes(s.ed.State().Doc)
}

// AcceptAll makes every tracked change permanent. It reports false when
// there was nothing to accept.
func (s *Session) AcceptAll() (bool, error) {
	return s.Update(func(st editor.State) (*transform.Transaction, error) {
		return s.tracker.AcceptAll(st), nil
	})
}

// RejectAll discards every tracked change.
func (s *Session) RejectAll() (bool, error) {
	return s.Update(func(st editor.State) (*transform.Transaction, error) {
		return s.tracker.RejectAll(st), nil
	})
}

// Accept resolves one change as listed by Changes.
func (s *Session) Accept(c track.Change) (bool, error) {
	return s.Update(func(st editor.State) (*transform.Transaction, error) {
		return s.tracker.Accept(st, c)
	})
}

// Reject discards one change as listed by Changes.
func (s *Session) Reject(c track.Change) (bool, error) {
	return s.Update(func(st editor.State) (*transform.Transaction, error) {
		return s.tracker.Reject(st, c)
	})
}

// Undo reverts the last change group.
func (s *Session) Undo() error { return s.ed.Undo() }

// Redo reapplies the last undone change group.
func (s *Session) Redo() error { return s.ed.Redo() }

// Snapshot takes a manual snapshot. An empty label selects the default. It
// reports false when the document is too short or unchanged.
func (s *Session) Snapshot(ctx context.Context, label string) (core.Snapshot, bool, error) {
	if s.snapshots == nil {
		return core.Snapshot{}, false, core.ErrUnsupported
	}
	return s.snapshots.Take(ctx, s.docID, s.ed.State().Doc, core.TriggerManual, label)
}

// Snapshots lists the document's snapshots, newest first.
func (s *Session) Snapshots(ctx context.Context) ([]core.Snapshot, error) {
	if s.snapshots == nil {
		return nil, core.ErrUnsupported
	}
	return s.snapshots.List(ctx, s.docID)
}

// Compare diffs two snapshots of the document.
func (s *Session) Compare(ctx context.Context, fromID, toID string) ([]snapshot.Part, error) {
	if s.snapshots == nil {
		return nil, core.ErrUnsupported
	}
	return s.snapshots.Compare(ctx, fromID, toID)
}

// Restore loads a restore point into the editor and saves it.
func (s *Session) Restore(ctx context.Context, snapshotID string) error {
	if s.snapshots == nil {
		return core.ErrUnsupported
	}
	if s.ViewOnly() {
		return core.ErrNotLeaseHolder
	}
	snap, err := s.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return err
	}
	if snap.DocumentID != s.docID {
		return fmt.Errorf("snapshot %s belongs to %s: %w", snapshotID, snap.DocumentID, core.ErrNotFound)
	}
	d, err := s.snapshots.Restore(ctx, snapshotID)
	if err != nil {
		return err
	}
	if err := s.ed.SetContent(d); err != nil {
		return err
	}
	return s.save(core.WithChangeReason(ctx, "restore "+snap.Label), "restore")
}
