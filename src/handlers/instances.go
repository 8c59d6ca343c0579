package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/services"
)

// InstanceHandler handles mock API instance lifecycle requests
type InstanceHandler struct {
	instances *services.InstanceService
}

// NewInstanceHandler creates a new instance handler
func NewInstanceHandler(instances *services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instances: instances}
}

type createInstanceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleCreate creates an instance. The body is optional.
func (ih *InstanceHandler) HandleCreate(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, errInvalidBody)
		return
	}

	inst, err := ih.instances.CreateInstance(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondServiceError(c, "instances", err)
		return
	}

	c.JSON(http.StatusCreated, inst)
}

// HandleGet returns an instance without requiring its key
func (ih *InstanceHandler) HandleGet(c *gin.Context) {
	inst, err := ih.instances.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "instances", err)
		return
	}
	if inst == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// HandleGetByKey returns the instance resolved from the x-api-key header
func (ih *InstanceHandler) HandleGetByKey(c *gin.Context) {
	inst := middleware.GetInstance(c)
	if inst == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// HandleGetKey returns an instance's API key
func (ih *InstanceHandler) HandleGetKey(c *gin.Context) {
	key, err := ih.instances.GetAPIKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "instances", err)
		return
	}
	if key == "" {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"apiKey": key})
}

// HandleDelete removes an instance and all of its items
func (ih *InstanceHandler) HandleDelete(c *gin.Context) {
	deleted, err := ih.instances.DeleteInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "instances", err)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
