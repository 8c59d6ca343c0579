package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/services"
)

// MockHandler serves configured items as live endpoints under /mock/:id
type MockHandler struct {
	instances *services.InstanceService
}

// NewMockHandler creates a new mock endpoint handler
func NewMockHandler(instances *services.InstanceService) *MockHandler {
	return &MockHandler{instances: instances}
}

// HandleMock replies with the first item of the instance whose method and
// path match the request, after the item's delay
func (mh *MockHandler) HandleMock(c *gin.Context) {
	inst, item, err := mh.instances.FindItemByRoute(c.Request.Context(), c.Param("id"), c.Request.Method, c.Param("path"))
	if err != nil {
		respondServiceError(c, "mock", err)
		return
	}
	if inst == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}
	if item == nil {
		respondError(c, http.StatusNotFound, errEndpointNotFound)
		return
	}

	if item.Delay > 0 {
		timer := time.NewTimer(time.Duration(item.Delay) * time.Millisecond)
		select {
		case <-c.Request.Context().Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	contentType := "application/json; charset=utf-8"
	for name, value := range item.Headers {
		if http.CanonicalHeaderKey(name) == "Content-Type" {
			contentType = value
			continue
		}
		c.Header(name, value)
	}

	body := []byte(item.Response)
	if len(body) == 0 {
		body = []byte("null")
	}
	c.Data(item.Status, contentType, body)
}
