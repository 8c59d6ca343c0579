package handlers

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/config"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

// Dependencies are the services the router serves
type Dependencies struct {
	Config    *config.Config
	Health    HealthChecker
	Instances *services.InstanceService
	Webhooks  *services.WebhookService
}

// NewRouter builds the gin engine with all routes. The returned stop
// function ends the rate limiters' background cleanup.
func NewRouter(deps Dependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	origins := SplitOrigins(cfg.AllowedOrigins)

	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(origins)))
	router.Use(middleware.BodyLimitMiddleware(cfg.MaxBodySize))

	createLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.CreateRatePerMinute,
	}, middleware.ClientIPKey)
	itemsLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.ItemsRatePerMinute,
	}, middleware.APIKeyOrIPKey)
	stop := func() {
		createLimiter.Stop()
		itemsLimiter.Stop()
	}

	healthHandler := NewHealthHandler(deps.Health)
	instanceHandler := NewInstanceHandler(deps.Instances)
	itemHandler := NewItemHandler(deps.Instances, DefaultItemsLimit)
	publicItemHandler := NewItemHandler(deps.Instances, DefaultPublicItemsLimit)
	mockHandler := NewMockHandler(deps.Instances)
	webhookHandler := NewWebhookHandler(deps.Webhooks)
	sseHandler := NewSSEHandler(deps.Webhooks, cfg.HeartbeatInterval)
	wsHandler := NewWebSocketHandler(deps.Webhooks, cfg.HeartbeatInterval, origins)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Instances
	router.POST("/instances", createLimiter.Middleware(), instanceHandler.HandleCreate)
	router.GET("/instances/:id", instanceHandler.HandleGet)
	router.GET("/instances/:id/key", instanceHandler.HandleGetKey)

	// Limiters run after authentication so only verified keys get a bucket
	keyed := router.Group("/instances/:id")
	keyed.Use(middleware.RequireAPIKey(deps.Instances), itemsLimiter.Middleware())
	{
		keyed.DELETE("", instanceHandler.HandleDelete)
		keyed.GET("/items", itemHandler.HandleList)
		keyed.POST("/items", itemHandler.HandleCreate)
		keyed.GET("/items/:itemId", itemHandler.HandleGet)
		keyed.PUT("/items/:itemId", itemHandler.HandleUpdate)
		keyed.DELETE("/items/:itemId", itemHandler.HandleDelete)
	}

	// Instance resolved from the key alone
	byKey := router.Group("")
	byKey.Use(middleware.ResolveAPIKey(deps.Instances), itemsLimiter.Middleware())
	{
		byKey.GET("/instance", instanceHandler.HandleGetByKey)
		byKey.GET("/items", itemHandler.HandleListAll)
	}

	// Public mirror, no key required
	public := router.Group("/public")
	public.Use(itemsLimiter.Middleware())
	{
		public.GET("/items", publicItemHandler.HandleCatalog)
		public.GET("/instances/:id/items", publicItemHandler.HandleList)
		public.POST("/instances/:id/items", publicItemHandler.HandleCreate)
		public.GET("/instances/:id/items/:itemId", publicItemHandler.HandleGet)
		public.PUT("/instances/:id/items/:itemId", publicItemHandler.HandleUpdate)
		public.DELETE("/instances/:id/items/:itemId", publicItemHandler.HandleDelete)
	}

	// Configured items served as live endpoints
	router.Any("/mock/:id/*path", mockHandler.HandleMock)

	// Webhook capture and tailing
	router.Any("/webhooks/:id", webhookHandler.HandleCapture)
	router.GET("/webhooks/:id/logs", webhookHandler.HandleLogs)
	router.DELETE("/webhooks/:id/logs", webhookHandler.HandleClear)
	router.GET("/webhooks/:id/stream", sseHandler.HandleSSE)
	router.GET("/webhooks/:id/ws", wsHandler.HandleWebSocket)

	return router, stop
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", models.APIKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		return allowed[origin]
	}
	return cfg
}

// SplitOrigins parses a comma-separated origin list. "*" or an empty
// string means every origin.
func SplitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
