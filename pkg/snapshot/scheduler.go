package snapshot

import (
	"context"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
)

// DefaultInterval is the period of automatic snapshots.
const DefaultInterval = 5 * time.Minute

// Source returns the document to snapshot. ok is false when there is
// nothing to capture.
type Source func() (documentID string, d *doc.Doc, ok bool)

// Scheduler takes auto snapshots periodically.
type Scheduler struct {
	svc      *Service
	source   Source
	interval time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval selects
// DefaultInterval.
func NewScheduler(svc *Service, source Source, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{svc: svc, source: source, interval: interval}
}

// Start runs the scheduler until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.svc.logger.Error("snapshot scheduler stopped", "error", err)
	}))
}

// Tick takes one auto snapshot now.
func (s *Scheduler) Tick(ctx context.Context) bool {
	id, d, ok := s.source()
	if !ok {
		return false
	}
	_, taken, err := s.svc.Take(ctx, id, d, core.TriggerAuto, "")
	if err != nil {
		s.svc.logger.Warn("auto snapshot failed", "document", id, "error", err)
		return false
	}
	return taken
}
