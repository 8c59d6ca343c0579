package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 4096
)

// wsFrame is one message sent to a WebSocket tail client
type wsFrame struct {
	Type string             `json:"type"`
	Log  *models.WebhookLog `json:"log,omitempty"`
}

// WebSocketHandler streams captured webhook requests over a WebSocket
type WebSocketHandler struct {
	webhooks  *services.WebhookService
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. An empty origin list
// accepts every origin.
func NewWebSocketHandler(webhooks *services.WebhookService, heartbeat time.Duration, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		webhooks:  webhooks,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket sends the backlog as "log" frames, then every new entry.
// A "reset" frame tells the client to reload the backlog.
func (wh *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	webhookID := c.Param("id")
	log := middleware.RequestLogger(c, "websocket").With().Str("webhook_id", webhookID).Logger()

	backlog, sub, cancel, err := wh.webhooks.Stream(c.Request.Context(), webhookID)
	if err != nil {
		respondServiceError(c, "websocket", err)
		return
	}
	defer cancel()

	conn, err := wh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	// The reader only services control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadLimit(wsReadLimit)
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("websocket read error")
				}
				return
			}
		}
	}()

	send := func(frame wsFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(frame) == nil
	}

	for i := range backlog {
		if !send(wsFrame{Type: "log", Log: &backlog[i]}) {
			return
		}
	}

	ticker := time.NewTicker(wh.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
			return
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-sub.Ready():
			n := sub.Drain()
			if n.Reset && !send(wsFrame{Type: "reset"}) {
				return
			}
			for i := range n.Logs {
				if !send(wsFrame{Type: "log", Log: &n.Logs[i]}) {
					return
				}
			}
		}
	}
}
