package sse

import (
	"sync"
)

// Message is one notification pushed to a client stream.
type Message = map[string]interface{}

// Hub fans notifications out to the open streams of each owner.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[chan Message]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[chan Message]struct{})}
}

func (h *Hub) Register(ownerID string, ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[ownerID] == nil {
		h.channels[ownerID] = make(map[chan Message]struct{})
	}
	h.channels[ownerID][ch] = struct{}{}
}

func (h *Hub) Unregister(ownerID string, ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels[ownerID], ch)
	if len(h.channels[ownerID]) == 0 {
		delete(h.channels, ownerID)
	}
}

// SendToUser delivers notification to every stream of ownerID without
// blocking. It reports whether at least one stream accepted it.
func (h *Hub) SendToUser(ownerID string, notification Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for ch := range h.channels[ownerID] {
		select {
		case ch <- notification:
			delivered = true
		default:
		}
	}
	return delivered
}

// Connected reports the number of open streams for ownerID.
func (h *Hub) Connected(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[ownerID])
}
