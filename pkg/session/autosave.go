package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/editor"
)

// changed schedules an autosave after every document change. Each change
// restarts the quiet period.
func (s *Session) changed(ch editor.Change) {
	if !ch.DocChanged() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.autosaveDelay < 0 {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.autosaveDelay, func() {
		if err := s.save(s.ctx, "autosave"); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("autosave failed", "error", err)
		}
	})
}

// Save writes the current document now. It is a no-op when nothing changed
// since the last save and fails with core.ErrNotLeaseHolder in a view-only
// session.
func (s *Session) Save(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.save(ctx, "save")
}

func (s *Session) save(ctx context.Context, reason string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.ViewOnly() {
		return core.ErrNotLeaseHolder
	}
	d := s.ed.State().Doc
	tree, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	s.mu.Lock()
	unchanged := bytes.Equal(tree, s.lastSaved)
	s.mu.Unlock()
	if unchanged {
		s.logger.Debug("save skipped, content unchanged", "reason", reason)
		return nil
	}

	now := s.clock().UTC()
	err = s.svc.SaveDocument(core.WithChangeReason(ctx, core.ChangeReason(ctx, reason)), core.Document{
		ID:        s.docID,
		Title:     d.Title(),
		Tree:      tree,
		Markdown:  d.Markdown(),
		UpdatedAt: now,
	})
	if s.metrics != nil {
		s.metrics.ObserveSave(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
	if err != nil {
		return err
	}
	s.lastSaved, s.savedAt = tree, now
	s.logger.Debug("document saved", "reason", reason)
	return nil
}

// Dirty reports whether the document has changes not yet saved.
func (s *Session) Dirty() bool {
	tree, err := json.Marshal(s.ed.State().Doc)
	if err != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !bytes.Equal(tree, s.lastSaved)
}
