package broadcast

import (
	"sync"

	"github.com/khabaroff/mockhook/src/models"
)

// Notification is what a subscriber drains after a Ready signal.
// Reset means the bucket shrank and the full backlog should be re-fetched.
type Notification struct {
	Logs  []models.WebhookLog
	Reset bool
}

// Subscriber is one live-tail session. Publishers append to an unbounded
// queue and never block; the session waits on Ready and then calls Drain.
type Subscriber struct {
	webhookID string
	ready     chan struct{}

	mu      sync.Mutex
	pending []models.WebhookLog
	reset   bool
	closed  bool
}

func newSubscriber(webhookID string) *Subscriber {
	return &Subscriber{
		webhookID: webhookID,
		ready:     make(chan struct{}, 1),
	}
}

// WebhookID returns the bucket this subscriber listens to
func (s *Subscriber) WebhookID() string {
	return s.webhookID
}

// Ready fires when there is something to drain
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns and clears everything queued since the last call, in publish order
func (s *Subscriber) Drain() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Notification{Logs: s.pending, Reset: s.reset}
	s.pending = nil
	s.reset = false
	return n
}

func (s *Subscriber) push(logs []models.WebhookLog) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, logs...)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) markReset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// queued logs are part of the backlog the client is about to re-fetch
	s.pending = nil
	s.reset = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
}
