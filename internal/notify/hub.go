package notify

import (
	"strings"
	"sync"
)

// Hub fans newly stored notifications out to live subscribers (the
// WebSocket feed). Delivery is best-effort: a subscriber with a full
// buffer misses the message rather than blocking the writer.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Notification]struct{}
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Notification]struct{})}
}

// Subscribe registers a listener for one owner's notifications and
// returns the channel plus a cancel function.
func (h *Hub) Subscribe(owner string) (<-chan Notification, func()) {
	owner = strings.ToLower(owner)
	ch := make(chan Notification, 16)

	h.mu.Lock()
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[chan Notification]struct{})
	}
	h.subs[owner][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[owner]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, owner)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) publish(owner string, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[owner] {
		select {
		case ch <- n:
		default:
		}
	}
}
