package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RawBodyKey is the context key holding the buffered request body
const RawBodyKey = "raw_body"

// BodyLimitMiddleware buffers the request body up to maxBytes, rejects
// larger bodies with 413 and restores the body for the next handlers
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Set(RawBodyKey, []byte{})
			c.Next()
			return
		}

		reader := http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		body, err := io.ReadAll(reader)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": "Request body too large",
				})
			} else {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Failed to read request body",
				})
			}
			c.Abort()
			return
		}

		c.Set(RawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetRawBody returns the body buffered by BodyLimitMiddleware, or nil
func GetRawBody(c *gin.Context) []byte {
	if v, exists := c.Get(RawBodyKey); exists {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}
