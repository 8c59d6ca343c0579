package broadcast

import (
	"sync"

	"github.com/khabaroff/mockhook/src/models"
)

// Hub tracks live-tail subscribers per webhook id
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber for webhookID. The returned cancel
// func is idempotent and releases the id's set once it is empty.
func (h *Hub) Subscribe(webhookID string) (*Subscriber, func()) {
	sub := newSubscriber(webhookID)

	h.mu.Lock()
	set, ok := h.subs[webhookID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[webhookID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.unsubscribe(sub)
		})
	}
	return sub, cancel
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.close()
	set, ok := h.subs[sub.webhookID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.webhookID)
	}
}

// Publish queues logs on every subscriber of webhookID
func (h *Hub) Publish(webhookID string, logs ...models.WebhookLog) {
	if len(logs) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[webhookID] {
		// each subscriber gets its own slice
		sub.push(append([]models.WebhookLog(nil), logs...))
	}
}

// Reset tells every subscriber of webhookID to re-fetch the bucket
func (h *Hub) Reset(webhookID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[webhookID] {
		sub.markReset()
	}
}

// Count returns the number of subscribers for webhookID
func (h *Hub) Count(webhookID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[webhookID])
}

// Buckets returns how many webhook ids currently have subscribers
func (h *Hub) Buckets() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
