package selection

import "github.com/phobologic/saccade/internal/model"

// History is a LIFO of selections replaced by expand.
type History struct {
	stack []model.Selection
}

// Push records s.
func (h *History) Push(s model.Selection) {
	h.stack = append(h.stack, s)
}

// Pop removes and returns the newest entry.
func (h *History) Pop() (model.Selection, bool) {
	if len(h.stack) == 0 {
		return model.Selection{}, false
	}
	s := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return s, true
}

// Clear drops every entry.
func (h *History) Clear() {
	h.stack = nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.stack)
}
