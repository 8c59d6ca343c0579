package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/services"
)

// Client-facing error messages
const (
	errInternal          = "Internal server error"
	errInstanceNotFound  = "Instance not found"
	errItemNotFound      = "Item not found"
	errEndpointNotFound  = "Endpoint not found"
	errInvalidBody       = "Invalid request body"
	errInvalidPagination = "Invalid pagination parameters"
	errCreationConflict  = "Instance creation already in progress"
)

// respondError writes the standard {error: "..."} body
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError maps a service error onto a response. Unknown errors
// are logged and reported as 500 without detail.
func respondServiceError(c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPagination):
		respondError(c, http.StatusBadRequest, errInvalidPagination)
	case errors.Is(err, services.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrCreationInProgress):
		c.Header("Retry-After", "1")
		respondError(c, http.StatusConflict, errCreationConflict)
	default:
		log := middleware.RequestLogger(c, component)
		log.Error().Err(err).Msg("request failed")
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, errInternal)
	}
}

// parsePagination reads page and limit query parameters. Missing values
// take defaults; anything non-numeric or below 1 is rejected.
func parsePagination(c *gin.Context, defaultLimit int) (page, limit int, ok bool) {
	page, limit = 1, defaultLimit

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, false
		}
		page = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, false
		}
		limit = n
	}

	return page, limit, page >= 1 && limit >= 1
}
