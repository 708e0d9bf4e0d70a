// Package marginalia is the composition root of a writing assistant's
// document engine.
//
// It connects the editing core (document tree, transactions, change
// tracking, readability analysis, asynchronous suggestions, snapshots and
// leases) with the storage adapters using the hexagonal layout of pkg/core
// and pkg/adapters.
//
// Features:
//
//   - **Single Apply Path**: every edit is a transaction passing through the
//     editor's filter, append and observe hooks.
//   - **Suggestion Mode**: edits become tracked insertions and deletions that
//     can be accepted or rejected, one by one or all at once.
//   - **Readability Overlay**: advisory issues mapped onto document positions.
//   - **Stale-Safe Assistance**: ghost text, generated images and rewrites are
//     checked against the current document before they land.
//   - **Snapshots**: automatic, manual and AI-bracketing restore points.
//   - **Storage Adapters**: markdown files with optional git, or SQLite, with
//     leases in the repository, BadgerDB or memory.
//
// Usage:
//
//	svc, err := marginalia.New("./drafts",
//		marginalia.WithAutoInit(true),
//		marginalia.WithVersioning(false),
//	)
//	defer svc.Close()
//
//	s, err := marginalia.Open(ctx, svc, "essay", session.WithCreate())
//	defer s.Close(ctx)
package marginalia
