package wsfeed

import "sync"

// DefaultHistorySize bounds the event history when no size is given.
const DefaultHistorySize = 32

// History is a bounded in-memory ring of recent stall events. It is not
// persistence: events exist only to seed the snapshot a newly connected
// client receives, and the oldest are discarded once the bound is hit.
type History struct {
	mu     sync.RWMutex
	events []StallPayload
	max    int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

func (h *History) Add(p StallPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, p)
	if len(h.events) > h.max {
		h.events = append([]StallPayload(nil), h.events[len(h.events)-h.max:]...)
	}
}

// Recent returns a copy of the stored events, oldest first.
func (h *History) Recent() []StallPayload {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]StallPayload, 0, len(h.events))
	return append(result, h.events...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
