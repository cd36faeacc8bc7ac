package event

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 64

// Hub is an in-process fan-out for domain events. Publish never blocks;
// a subscriber that falls behind loses events rather than stalling the
// ingestion path.
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewHub creates an event hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger:      log.With(slog.String("service", "event_hub")),
		subscribers: map[int]chan Event{},
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subscribers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish fans the event out to all subscribers without blocking.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				slog.String("type", string(evt.Type)))
		}
	}
}
