package editor

import (
	"slices"

	"github.com/aretw0/marginalia/pkg/transform"
)

// historyEvent holds the steps undoing one dispatched change group and the
// selection to restore.
type historyEvent struct {
	steps     []transform.Step
	selection transform.Selection
}

type history struct {
	undo  []historyEvent
	redo  []historyEvent
	depth int
}

func newHistory(depth int) *history {
	return &history{depth: depth}
}

// invert builds the event undoing every step of trs, last step first.
func invert(trs []*transform.Transaction, selection transform.Selection) (historyEvent, bool, error) {
	var steps []transform.Step
	for _, tr := range trs {
		for i, s := range tr.Steps() {
			inv, err := s.Invert(tr.DocBefore(i))
			if err != nil {
				return historyEvent{}, false, err
			}
			steps = append(steps, inv)
		}
	}
	if len(steps) == 0 {
		return historyEvent{}, false, nil
	}
	slices.Reverse(steps)
	return historyEvent{steps: steps, selection: selection}, true, nil
}

func (h *history) push(stack *[]historyEvent, ev historyEvent) {
	*stack = append(*stack, ev)
	if h.depth > 0 && len(*stack) > h.depth {
		*stack = (*stack)[len(*stack)-h.depth:]
	}
}

func pop(stack *[]historyEvent) (historyEvent, bool) {
	n := len(*stack)
	if n == 0 {
		return historyEvent{}, false
	}
	ev := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	return ev, true
}

func (h *history) reset() {
	h.undo = nil
	h.redo = nil
}
