package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khabaroff/mockhook/src/broadcast"
	"github.com/khabaroff/mockhook/src/database"
	"github.com/khabaroff/mockhook/src/logging"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/repositories"
	"github.com/rs/zerolog"
)

// WebhookService captures webhook requests per webhook id and fans new
// entries out to live-tail subscribers
type WebhookService struct {
	store   repositories.DocumentStore
	hub     *broadcast.Hub
	maxLogs int
	maxAge  time.Duration

	// mu orders persist-then-notify so subscribers see append order
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(store repositories.DocumentStore, hub *broadcast.Hub, maxLogs int, maxAge time.Duration) *WebhookService {
	return &WebhookService{
		store:   store,
		hub:     hub,
		maxLogs: maxLogs,
		maxAge:  maxAge,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		log:     logging.NewLogger("webhook_store"),
	}
}

// sweep trims every bucket by age then count and returns the ids that shrank
func (s *WebhookService) sweep(doc *database.Document) []string {
	cutoff := s.now().Add(-s.maxAge)

	var shrunk []string
	for id, logs := range doc.Logs {
		kept := make([]models.WebhookLog, 0, len(logs))
		for _, l := range logs {
			if !l.OlderThan(cutoff) {
				kept = append(kept, l)
			}
		}
		if len(kept) > s.maxLogs {
			kept = kept[:s.maxLogs]
		}
		if len(kept) == len(logs) {
			continue
		}
		if len(kept) == 0 {
			delete(doc.Logs, id)
		} else {
			doc.Logs[id] = kept
		}
		shrunk = append(shrunk, id)
	}
	return shrunk
}

func (s *WebhookService) notifyReset(ids []string) {
	for _, id := range ids {
		s.hub.Reset(id)
	}
	if len(ids) > 0 {
		s.log.Debug().Int("buckets", len(ids)).Msg("webhook logs evicted")
	}
}

// AddLog stores a captured request as the newest entry of its bucket and
// notifies subscribers with exactly that entry
func (s *WebhookService) AddLog(ctx context.Context, webhookID string, input models.LogInput) (*models.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.WebhookLog{
		ID:        s.newID(),
		Timestamp: s.now(),
		Method:    input.Method,
		Path:      input.Path,
		Headers:   input.Headers,
		Body:      input.Body,
		Query:     input.Query,
		Response:  input.Response,
	}
	if entry.Headers == nil {
		entry.Headers = map[string]string{}
	}
	if entry.Query == nil {
		entry.Query = map[string]string{}
	}
	if len(entry.Body) == 0 {
		entry.Body = []byte("{}")
	}

	var shrunk []string
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		shrunk = s.sweep(doc)

		logs := doc.Logs[webhookID]
		replaced := false
		for i := range logs {
			if logs[i].ID == entry.ID {
				logs[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			logs = append([]models.WebhookLog{entry}, logs...)
		}
		if len(logs) > s.maxLogs {
			logs = logs[:s.maxLogs]
		}
		doc.Logs[webhookID] = logs
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save webhook log: %w", err)
	}

	s.notifyReset(shrunk)
	s.hub.Publish(webhookID, entry)
	return &entry, nil
}

// GetLogs returns the bucket newest first. It never returns nil.
func (s *WebhookService) GetLogs(ctx context.Context, webhookID string) ([]models.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLogsLocked(ctx, webhookID)
}

func (s *WebhookService) getLogsLocked(ctx context.Context, webhookID string) ([]models.WebhookLog, error) {
	var (
		shrunk []string
		logs   []models.WebhookLog
	)
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		shrunk = s.sweep(doc)
		logs = doc.Logs[webhookID]
		return len(shrunk) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook logs: %w", err)
	}

	s.notifyReset(shrunk)
	if logs == nil {
		logs = []models.WebhookLog{}
	}
	return logs, nil
}

// Subscribe registers a live-tail subscriber for webhookID
func (s *WebhookService) Subscribe(webhookID string) (*broadcast.Subscriber, func()) {
	return s.hub.Subscribe(webhookID)
}

// Stream returns the current backlog together with a subscription that
// receives every entry appended after it, so nothing is missed or repeated
func (s *WebhookService) Stream(ctx context.Context, webhookID string) ([]models.WebhookLog, *broadcast.Subscriber, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog, err := s.getLogsLocked(ctx, webhookID)
	if err != nil {
		return nil, nil, nil, err
	}

	sub, cancel := s.hub.Subscribe(webhookID)
	return backlog, sub, cancel, nil
}

// ClearLogs empties a bucket and returns how many entries were removed
func (s *WebhookService) ClearLogs(ctx context.Context, webhookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		removed = len(doc.Logs[webhookID])
		if removed == 0 {
			return false, nil
		}
		delete(doc.Logs, webhookID)
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear webhook logs: %w", err)
	}

	if removed > 0 {
		s.hub.Reset(webhookID)
		log := logging.WebhookLogger("webhook_store", webhookID)
		log.Info().Int("removed", removed).Msg("webhook logs cleared")
	}
	return removed, nil
}

// Cleanup runs the eviction sweep over every bucket and returns the
// number of buckets that shrank
func (s *WebhookService) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var shrunk []string
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		shrunk = s.sweep(doc)
		return len(shrunk) > 0, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict webhook logs: %w", err)
	}

	s.notifyReset(shrunk)
	return len(shrunk), nil
}
