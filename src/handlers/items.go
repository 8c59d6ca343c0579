package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/middleware"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

// Default page sizes for item listings
const (
	DefaultItemsLimit       = 10
	DefaultPublicItemsLimit = 5
)

// ItemHandler serves the items of one instance. The same handler backs the
// keyed routes and the public mirror; only the route middleware differs.
type ItemHandler struct {
	instances    *services.InstanceService
	defaultLimit int
}

// NewItemHandler creates a new item handler
func NewItemHandler(instances *services.InstanceService, defaultLimit int) *ItemHandler {
	return &ItemHandler{
		instances:    instances,
		defaultLimit: defaultLimit,
	}
}

// HandleList returns one page of items
func (ih *ItemHandler) HandleList(c *gin.Context) {
	page, limit, ok := parsePagination(c, ih.defaultLimit)
	if !ok {
		respondError(c, http.StatusBadRequest, errInvalidPagination)
		return
	}

	result, err := ih.instances.ListItems(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if result == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleCreate adds an item to the instance
func (ih *ItemHandler) HandleCreate(c *gin.Context) {
	var input models.ItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, errInvalidBody)
		return
	}

	item, err := ih.instances.CreateItem(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if item == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// HandleGet returns a single item
func (ih *ItemHandler) HandleGet(c *gin.Context) {
	item, err := ih.instances.GetItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if item == nil {
		respondError(c, http.StatusNotFound, errItemNotFound)
		return
	}

	c.JSON(http.StatusOK, item)
}

// HandleUpdate merges the request body over an item
func (ih *ItemHandler) HandleUpdate(c *gin.Context) {
	var patch models.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, errInvalidBody)
		return
	}

	item, err := ih.instances.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), patch)
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if item == nil {
		respondError(c, http.StatusNotFound, errItemNotFound)
		return
	}

	c.JSON(http.StatusOK, item)
}

// HandleDelete removes an item
func (ih *ItemHandler) HandleDelete(c *gin.Context) {
	deleted, err := ih.instances.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, errItemNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleListAll returns every item of the instance resolved from the
// x-api-key header, unpaginated
func (ih *ItemHandler) HandleListAll(c *gin.Context) {
	items, err := ih.instances.GetAllItems(c.Request.Context(), c.GetString(middleware.InstanceIDContextKey))
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}
	if items == nil {
		respondError(c, http.StatusNotFound, errInstanceNotFound)
		return
	}

	c.JSON(http.StatusOK, items)
}

// HandleCatalog lists every item of every live instance
func (ih *ItemHandler) HandleCatalog(c *gin.Context) {
	items, err := ih.instances.ListAllItems(c.Request.Context())
	if err != nil {
		respondServiceError(c, "items", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}
