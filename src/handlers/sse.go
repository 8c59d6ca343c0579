package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

// SSEHandler streams captured webhook requests as Server-Sent Events
type SSEHandler struct {
	webhooks  *services.WebhookService
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(webhooks *services.WebhookService, heartbeat time.Duration) *SSEHandler {
	return &SSEHandler{
		webhooks:  webhooks,
		heartbeat: heartbeat,
	}
}

// HandleSSE handles SSE connections and polling
func (sh *SSEHandler) HandleSSE(c *gin.Context) {
	if c.Query("poll") == "true" {
		sh.handlePolling(c)
		return
	}

	sh.handleSSEStream(c)
}

// handleSSEStream sends the backlog, then every new entry until the client
// goes away
func (sh *SSEHandler) handleSSEStream(c *gin.Context) {
	webhookID := c.Param("id")
	ctx := c.Request.Context()
	log := middleware.RequestLogger(c, "sse").With().Str("webhook_id", webhookID).Logger()

	backlog, sub, cancel, err := sh.webhooks.Stream(ctx, webhookID)
	if err != nil {
		respondServiceError(c, "sse", err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	_, _ = c.Writer.WriteString(": connected\n\n") // Ignore error, connection will fail anyway
	for i := range backlog {
		if err := writeSSELog(c, &backlog[i]); err != nil {
			return
		}
	}
	c.Writer.Flush()

	log.Debug().Int("backlog", len(backlog)).Msg("SSE client connected")

	ticker := time.NewTicker(sh.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("SSE client disconnected")
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(":\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-sub.Ready():
			n := sub.Drain()
			if n.Reset {
				if _, err := c.Writer.WriteString("event: reset\ndata: []\n\n"); err != nil {
					return
				}
			}
			for i := range n.Logs {
				if err := writeSSELog(c, &n.Logs[i]); err != nil {
					return
				}
			}
			c.Writer.Flush()
		}
	}
}

// handlePolling returns the backlog as a plain JSON array
func (sh *SSEHandler) handlePolling(c *gin.Context) {
	logs, err := sh.webhooks.GetLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "sse", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

func writeSSELog(c *gin.Context, entry *models.WebhookLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	return err
}
