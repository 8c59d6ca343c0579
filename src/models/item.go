package models

import (
	"encoding/json"
	"time"
)

// Item is a single mock endpoint's static response definition
type Item struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Response    json.RawMessage   `json:"response"`
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	Delay       int               `json:"delay"` // milliseconds
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ItemInput holds the caller-supplied fields of a new item
type ItemInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Response    json.RawMessage   `json:"response"`
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	Delay       int               `json:"delay"`
}

// ItemPatch holds a partial update; nil fields are left untouched
type ItemPatch struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Method      *string            `json:"method"`
	Path        *string            `json:"path"`
	Response    *json.RawMessage   `json:"response"`
	Status      *int               `json:"status"`
	Headers     *map[string]string `json:"headers"`
	Delay       *int               `json:"delay"`
}

// CatalogItem is an item annotated with its owning instance
type CatalogItem struct {
	Item
	InstanceID   string `json:"instanceId"`
	InstanceName string `json:"instanceName"`
}

// Pagination describes one page of a listing
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	ItemsPerPage    int  `json:"itemsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// ItemPage is a paginated slice of an instance's items
type ItemPage struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
