package core

import "errors"

// Common errors.
var (
	ErrReadOnly = errors.New("repository is in read-only mode")
	ErrNotFound = errors.New("not found")
	ErrEmptyID  = errors.New("document ID cannot be empty")
	// ErrLocked is returned when another holder owns an unexpired lease.
	ErrLocked = errors.New("document is locked by another session")
	// ErrNotLeaseHolder is returned for writes from a session without the lease.
	ErrNotLeaseHolder = errors.New("session does not hold the document lease")
	// ErrNotRestorePoint is returned when restoring a markdown-only snapshot.
	ErrNotRestorePoint = errors.New("snapshot is not a restore point")
	// ErrUnsupported is returned when the repository lacks a capability.
	ErrUnsupported = errors.New("not supported by repository")
)
