package models

import (
	"encoding/json"
	"time"
)

// WebhookLog is one captured inbound request to a webhook id
type WebhookLog struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	Path      string            `json:"path,omitempty"`
	Headers   map[string]string `json:"headers"`
	Body      json.RawMessage   `json:"body"`
	Query     map[string]string `json:"query"`
	Response  LogResponse       `json:"response"`
}

// LogResponse is the canned reply the capture endpoint sent
type LogResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// LogInput is a captured request before it is assigned an id and timestamp
type LogInput struct {
	Method   string
	Path     string
	Headers  map[string]string
	Body     json.RawMessage
	Query    map[string]string
	Response LogResponse
}

// OlderThan reports whether the log was captured before cutoff
func (l *WebhookLog) OlderThan(cutoff time.Time) bool {
	return l.Timestamp.Before(cutoff)
}
