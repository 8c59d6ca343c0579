package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

var captureResponse = json.RawMessage(`{"success":true}`)

// WebhookHandler captures inbound webhook requests and serves their logs
type WebhookHandler struct {
	webhooks *services.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleCapture records any request to /webhooks/:id and acknowledges it
func (wh *WebhookHandler) HandleCapture(c *gin.Context) {
	webhookID := c.Param("id")

	input := models.LogInput{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		// net/http canonicalizes header names, so received casing is not kept
		Headers: flattenHeaders(c.Request),
		Body:    captureBody(middleware.GetRawBody(c)),
		Query:   flattenQuery(c.Request),
		Response: models.LogResponse{
			Status: http.StatusOK,
			Body:   captureResponse,
		},
	}

	if _, err := wh.webhooks.AddLog(c.Request.Context(), webhookID, input); err != nil {
		respondServiceError(c, "webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleLogs returns the captured requests for a webhook id, newest first
func (wh *WebhookHandler) HandleLogs(c *gin.Context) {
	logs, err := wh.webhooks.GetLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "webhook", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// HandleClear drops every captured request for a webhook id
func (wh *WebhookHandler) HandleClear(c *gin.Context) {
	removed, err := wh.webhooks.ClearLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

// captureBody keeps JSON bodies as-is and wraps anything else as {"raw": text}
func captureBody(raw []byte) json.RawMessage {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(raw)})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return wrapped
}

// flattenHeaders joins repeated header values with ", " and adds Host,
// which net/http moves out of the header map
func flattenHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["Host"] = r.Host
	}
	return headers
}

// flattenQuery keeps the last value of repeated query parameters
func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	query := make(map[string]string, len(values))
	for name, v := range values {
		if len(v) > 0 {
			query[name] = v[len(v)-1]
		}
	}
	return query
}
