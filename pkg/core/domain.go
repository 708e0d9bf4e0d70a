// Package core holds the persistence boundary of marginalia: the stored
// shapes of documents, snapshots and leases, and the ports adapters
// implement for them.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is a stored document. Tree is the JSON tree of the editor model;
// Markdown is its rendering, kept for readable storage and as an import
// fallback when Tree is empty.
type Document struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Tree      json.RawMessage `json:"tree,omitempty"`
	Markdown  string          `json:"markdown,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Trigger records why a snapshot was taken.
type Trigger string

const (
	TriggerAuto     Trigger = "auto"
	TriggerManual   Trigger = "manual"
	TriggerAIBefore Trigger = "ai-before"
	TriggerAIAfter  Trigger = "ai-after"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(s); t {
	case TriggerAuto, TriggerManual, TriggerAIBefore, TriggerAIAfter:
		return t, nil
	}
	return "", fmt.Errorf("unknown snapshot trigger %q", s)
}

// RestorePoint reports whether snapshots of this trigger keep the full tree.
func (t Trigger) RestorePoint() bool {
	return t == TriggerManual || t == TriggerAIAfter
}

// Snapshot is a point-in-time copy of a document.
type Snapshot struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Trigger    Trigger         `json:"trigger"`
	Label      string          `json:"label"`
	Markdown   string          `json:"markdown"`
	Tree       json.RawMessage `json:"tree,omitempty"`
	WordCount  int             `json:"word_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Restorable reports whether the snapshot carries a full tree.
func (s Snapshot) Restorable() bool { return len(s.Tree) > 0 }

// Lease is an advisory, time-boxed write lock on a document.
type Lease struct {
	DocumentID string    `json:"document_id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease is no longer binding at now.
func (l Lease) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }

// EventType represents the type of change in the store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in the store.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}
