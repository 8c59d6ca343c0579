package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterEntry holds a rate limiter with last used timestamp
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// keyRateLimiter manages per-key rate limiters with automatic cleanup
type keyRateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newKeyRateLimiter(limit rate.Limit, burst int) *keyRateLimiter {
	k := &keyRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	// Start cleanup goroutine
	go k.cleanupLoop()
	return k
}

func (k *keyRateLimiter) getLimiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if entry, ok := k.limiters[key]; ok {
		entry.lastUsed = time.Now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = &limiterEntry{
		limiter:  limiter,
		lastUsed: time.Now(),
	}
	return limiter
}

// cleanupLoop removes stale entries every 5 minutes
func (k *keyRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.cleanup()
		case <-k.stopCh:
			return
		}
	}
}

// cleanup removes entries not used in the last 10 minutes
func (k *keyRateLimiter) cleanup() {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, entry := range k.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(k.limiters, key)
		}
	}
}

// Stop terminates the cleanup goroutine
func (k *keyRateLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}

// RateLimitConfig defines configuration for the rate limiting middleware
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *gin.Context) string

// ClientIPKey counts requests per client IP
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// APIKeyOrIPKey counts requests per authenticated API key, falling back to
// the client IP. Only keys accepted by RequireAPIKey or ResolveAPIKey count,
// so the limiter must run after them.
func APIKeyOrIPKey(c *gin.Context) string {
	if key := c.GetString(APIKeyContextKey); key != "" {
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a per-key limiter usable as gin middleware
type RateLimiter struct {
	limiter *keyRateLimiter
	keyFunc KeyFunc
	retry   time.Duration
}

// NewRateLimiter creates a limiter; call Stop to end its cleanup goroutine
func NewRateLimiter(cfg RateLimitConfig, keyFunc KeyFunc) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute / 6
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}

	interval := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &RateLimiter{
		limiter: newKeyRateLimiter(rate.Every(interval), cfg.Burst),
		keyFunc: keyFunc,
		retry:   interval,
	}
}

// Middleware returns the gin handler enforcing the limit
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		l := r.limiter.getLimiter(r.keyFunc(c))
		if !l.Allow() {
			seconds := int(math.Ceil(r.retry.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Stop terminates the limiter's cleanup goroutine
func (r *RateLimiter) Stop() {
	r.limiter.Stop()
}
