package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/logging"
	"github.com/khabaroff/mockhook/src/models"
)

// Context keys set by RequireAPIKey and ResolveAPIKey
const (
	APIKeyContextKey     = "api_key"
	InstanceIDContextKey = "instance_id"
	InstanceContextKey   = "instance"
)

// KeyValidator checks an instance key
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, instanceID, apiKey string) (bool, error)
}

// KeyResolver finds the instance holding an API key
type KeyResolver interface {
	GetInstanceByAPIKey(ctx context.Context, apiKey string) (*models.Instance, error)
}

// RequireAPIKey rejects requests whose x-api-key header does not match the
// instance named by the :id route parameter
func RequireAPIKey(validator KeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(models.APIKeyHeader)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key is required",
			})
			c.Abort()
			return
		}

		instanceID := c.Param("id")
		valid, err := validator.ValidateAPIKey(c.Request.Context(), instanceID, apiKey)
		if err != nil {
			log := logging.ComponentLogger("auth", GetRequestID(c))
			log.Error().Err(err).Str("instance_id", instanceID).Msg("api key validation failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
			c.Abort()
			return
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set(APIKeyContextKey, apiKey)
		c.Set(InstanceIDContextKey, instanceID)
		c.Next()
	}
}

// ResolveAPIKey authenticates routes without an :id parameter by looking the
// instance up from the x-api-key header
func ResolveAPIKey(resolver KeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(models.APIKeyHeader)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key is required",
			})
			c.Abort()
			return
		}

		inst, err := resolver.GetInstanceByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log := logging.ComponentLogger("auth", GetRequestID(c))
			log.Error().Err(err).Msg("api key lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
			c.Abort()
			return
		}

		if inst == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set(APIKeyContextKey, apiKey)
		c.Set(InstanceIDContextKey, inst.ID)
		c.Set(InstanceContextKey, inst)
		c.Next()
	}
}

// GetInstance returns the instance resolved by ResolveAPIKey, or nil
func GetInstance(c *gin.Context) *models.Instance {
	if v, exists := c.Get(InstanceContextKey); exists {
		if inst, ok := v.(*models.Instance); ok {
			return inst
		}
	}
	return nil
}
