package transform

// Provenance tags why a transaction exists. Engines that intercept
// transactions decide whether to react by switching on it.
type Provenance int

const (
	// ProvenanceUser is a direct edit by the writer.
	ProvenanceUser Provenance = iota
	// ProvenanceAssist is an edit applied on behalf of a generation service
	// (accepted ghost text, applied rewrite proposals).
	ProvenanceAssist
	// ProvenanceSystem is a correction appended by an engine, or a
	// bookkeeping edit such as placeholder resolution.
	ProvenanceSystem
	// ProvenanceHistory is an undo or redo.
	ProvenanceHistory
	// ProvenanceLoad replaces the whole document (open, restore).
	ProvenanceLoad
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceUser:
		return "user-edit"
	case ProvenanceAssist:
		return "assist"
	case ProvenanceSystem:
		return "system-correction"
	case ProvenanceHistory:
		return "undo-redo"
	case ProvenanceLoad:
		return "load"
	}
	return "unknown"
}
