// Package transform records document edits as invertible steps and maps
// positions across them.
//
// A position captured against one revision of a document must be mapped
// through every later step before it is trusted again. A mapping result
// flagged Deleted means the content the position pointed into is gone; work
// anchored there should be skipped rather than forced.
package transform

// MapResult is the outcome of mapping a single position.
type MapResult struct {
	Pos int
	// Deleted is set when the position sat strictly inside replaced content.
	Deleted bool
}

// StepMap describes how one step moved positions. Ranges are triples of
// (start, oldSize, newSize) in pre-step coordinates, sorted by start.
type StepMap struct {
	ranges []int
}

// NewStepMap builds a step map from (start, oldSize, newSize) triples.
func NewStepMap(ranges ...int) StepMap {
	return StepMap{ranges: ranges}
}

// Map maps pos through the step. assoc picks a side when content was
// inserted exactly at pos: negative stays before it, positive moves after.
func (m StepMap) Map(pos, assoc int) int {
	return m.MapResult(pos, assoc).Pos
}

// MapResult maps pos and reports whether it was deleted.
func (m StepMap) MapResult(pos, assoc int) MapResult {
	diff := 0
	for i := 0; i+2 < len(m.ranges); i += 3 {
		start := m.ranges[i]
		if start > pos {
			break
		}
		oldSize, newSize := m.ranges[i+1], m.ranges[i+2]
		end := start + oldSize
		if pos <= end {
			side := assoc
			if oldSize > 0 {
				switch pos {
				case start:
					side = -1
				case end:
					side = 1
				}
			}
			result := start + diff
			if side >= 0 {
				result += newSize
			}
			return MapResult{Pos: result, Deleted: pos > start && pos < end}
		}
		diff += newSize - oldSize
	}
	return MapResult{Pos: pos + diff}
}

// ForEach calls fn for every changed range with old and new coordinates.
func (m StepMap) ForEach(fn func(oldStart, oldEnd, newStart, newEnd int)) {
	diff := 0
	for i := 0; i+2 < len(m.ranges); i += 3 {
		start, oldSize, newSize := m.ranges[i], m.ranges[i+1], m.ranges[i+2]
		fn(start, start+oldSize, start+diff, start+diff+newSize)
		diff += newSize - oldSize
	}
}

// Invert returns the map of the inverse step.
func (m StepMap) Invert() StepMap {
	out := make([]int, 0, len(m.ranges))
	diff := 0
	for i := 0; i+2 < len(m.ranges); i += 3 {
		start, oldSize, newSize := m.ranges[i], m.ranges[i+1], m.ranges[i+2]
		out = append(out, start+diff, newSize, oldSize)
		diff += newSize - oldSize
	}
	return StepMap{ranges: out}
}

// Mapping composes the maps of a sequence of steps.
type Mapping struct {
	maps []StepMap
}

// Append adds a step map at the end of the mapping.
func (m *Mapping) Append(sm StepMap) {
	m.maps = append(m.maps, sm)
}

// AppendMapping adds every map of o.
func (m *Mapping) AppendMapping(o Mapping) {
	m.maps = append(m.maps, o.maps...)
}

// Slice returns the mapping of the steps from index from onwards.
func (m Mapping) Slice(from int) Mapping {
	if from >= len(m.maps) {
		return Mapping{}
	}
	return Mapping{maps: m.maps[from:len(m.maps):len(m.maps)]}
}

// Len is the number of step maps.
func (m Mapping) Len() int { return len(m.maps) }

// Map maps pos through every step.
func (m Mapping) Map(pos, assoc int) int {
	for _, sm := range m.maps {
		pos = sm.Map(pos, assoc)
	}
	return pos
}

// MapResult maps pos through every step. Deleted is set if any step deleted
// the position.
func (m Mapping) MapResult(pos, assoc int) MapResult {
	deleted := false
	for _, sm := range m.maps {
		r := sm.MapResult(pos, assoc)
		pos = r.Pos
		deleted = deleted || r.Deleted
	}
	return MapResult{Pos: pos, Deleted: deleted}
}
