// Package lifecycle exposes document change streams as lifecycle sources so
// a supervisor can react to edits made outside the running session.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/marginalia/pkg/core"
)

type documentSource struct {
	events <-chan core.Event
	keep   func(core.Event) bool
	out    chan lifecycle.Event
}

// SourceOption configures a source.
type SourceOption func(*documentSource)

// WithFilter drops events for which keep returns false.
func WithFilter(keep func(core.Event) bool) SourceOption {
	return func(s *documentSource) { s.keep = keep }
}

// ExceptDocument drops events of one document, typically the one the
// current session writes itself.
func ExceptDocument(id string) SourceOption {
	return WithFilter(func(e core.Event) bool { return e.ID != id })
}

// NewSource creates a lifecycle.Source that emits document events.
// core.Event satisfies lifecycle.Event through its String method.
func NewSource(events <-chan core.Event, opts ...SourceOption) lifecycle.Source {
	s := &documentSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch starts watching the repository behind svc and wraps the stream.
func Watch(ctx context.Context, svc *core.Service, pattern string, opts ...SourceOption) (lifecycle.Source, error) {
	events, err := svc.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return NewSource(events, opts...), nil
}

func (s *documentSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *documentSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if s.keep != nil && !s.keep(e) {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
