package assist

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of an asynchronous operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusDropped Status = "dropped"
	StatusFailed  Status = "failed"
)

// Pending describes an operation waiting on a generation service.
type Pending struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
	// Anchor is the position captured at dispatch, AnchorContent the text
	// that was there.
	Anchor        int       `json:"anchor"`
	AnchorContent string    `json:"anchor_content,omitempty"`
	Key           string    `json:"key,omitempty"`
	Status        Status    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
}

// Tracker keeps the set of in-flight operations.
type Tracker struct {
	mu     sync.Mutex
	items  map[uuid.UUID]Pending
	onDone func(kind string, status Status, elapsed time.Duration)
	clock  func() time.Time
}

// NewTracker creates an empty tracker. onDone, when set, is called as every
// operation finishes.
func NewTracker(onDone func(kind string, status Status, elapsed time.Duration)) *Tracker {
	return &Tracker{items: make(map[uuid.UUID]Pending), onDone: onDone, clock: time.Now}
}

func (t *Tracker) start(p Pending) uuid.UUID {
	if t == nil {
		return uuid.Nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = StatusPending
	p.StartedAt = t.clock()
	t.items[p.ID] = p
	return p.ID
}

func (t *Tracker) finish(id uuid.UUID, status Status) {
	if t == nil {
		return
	}
	t.mu.Lock()
	p, ok := t.items[id]
	delete(t.items, id)
	t.mu.Unlock()
	if ok && t.onDone != nil {
		t.onDone(p.Kind, status, t.clock().Sub(p.StartedAt))
	}
}

// Pending lists in-flight operations, oldest first.
func (t *Tracker) Pending() []Pending {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pending, 0, len(t.items))
	for _, p := range t.items {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pending) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out
}
