package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/khabaroff/mockhook/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) createItem(t *testing.T, inst models.Instance, body map[string]interface{}) models.Item {
	t.Helper()
	w := ts.do(http.MethodPost, "/instances/"+inst.ID+"/items", body, keyHeader(inst))
	assertStatusCode(t, w, http.StatusCreated)

	var item models.Item
	decodeJSON(t, w, &item)
	return item
}

func TestHandleItems_Pagination(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	for i := 0; i < 12; i++ {
		ts.createItem(t, inst, map[string]interface{}{"name": fmt.Sprintf("item-%d", i)})
	}

	w := ts.do(http.MethodGet, "/instances/"+inst.ID+"/items?page=3&limit=5", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)

	var page models.ItemPage
	decodeJSON(t, w, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "item-10", page.Items[0].Name)
	assert.Equal(t, models.Pagination{
		CurrentPage:     3,
		TotalPages:      3,
		TotalItems:      12,
		ItemsPerPage:    5,
		HasNextPage:     false,
		HasPreviousPage: true,
	}, page.Pagination)

	w = ts.do(http.MethodGet, "/instances/"+inst.ID+"/items", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	decodeJSON(t, w, &page)
	assert.Len(t, page.Items, DefaultItemsLimit)

	w = ts.do(http.MethodGet, "/public/instances/"+inst.ID+"/items", nil, nil)
	assertStatusCode(t, w, http.StatusOK)
	decodeJSON(t, w, &page)
	assert.Len(t, page.Items, DefaultPublicItemsLimit)
}

func TestHandleItems_InvalidPagination(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	for _, query := range []string{"page=0", "limit=0", "page=-1", "page=abc", "limit=x"} {
		t.Run(query, func(t *testing.T) {
			w := ts.do(http.MethodGet, "/instances/"+inst.ID+"/items?"+query, nil, keyHeader(inst))
			assertStatusCode(t, w, http.StatusBadRequest)
			assertJSONError(t, w, "Invalid pagination parameters")
		})
	}
}

func TestHandleItems_RequiresKey(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	other := ts.createInstance(t)

	w := ts.do(http.MethodGet, "/instances/"+inst.ID+"/items", nil, nil)
	assertStatusCode(t, w, http.StatusUnauthorized)

	w = ts.do(http.MethodGet, "/instances/"+inst.ID+"/items", nil, keyHeader(other))
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "Invalid API key")
}

func TestHandleCreateItem_Validation(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	path := "/instances/" + inst.ID + "/items"

	w := ts.do(http.MethodPost, path, "{broken", keyHeader(inst))
	assertStatusCode(t, w, http.StatusBadRequest)
	assertJSONError(t, w, "Invalid request body")

	w = ts.do(http.MethodPost, path, map[string]interface{}{"name": ""}, keyHeader(inst))
	assertStatusCode(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodPost, path, map[string]interface{}{"name": "x", "status": 42}, keyHeader(inst))
	assertStatusCode(t, w, http.StatusBadRequest)

	item := ts.createItem(t, inst, map[string]interface{}{"name": "defaults"})
	assert.Equal(t, "GET", item.Method)
	assert.Equal(t, 200, item.Status)
	assert.NotEmpty(t, item.ID)
}

func TestHandleItem_GetUpdateDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	item := ts.createItem(t, inst, map[string]interface{}{"name": "orig", "path": "/a"})
	path := "/instances/" + inst.ID + "/items/" + item.ID

	w := ts.do(http.MethodGet, path, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)

	w = ts.do(http.MethodPut, path, map[string]interface{}{"name": "renamed", "status": 404}, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	var updated models.Item
	decodeJSON(t, w, &updated)
	assert.Equal(t, item.ID, updated.ID)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 404, updated.Status)
	assert.Equal(t, "/a", updated.Path)
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(item.CreatedAt))

	w = ts.do(http.MethodDelete, path, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)

	w = ts.do(http.MethodGet, path, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusNotFound)
	assertJSONError(t, w, "Item not found")

	w = ts.do(http.MethodDelete, path, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestHandlePublicItems(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	w := ts.do(http.MethodPost, "/public/instances/"+inst.ID+"/items", map[string]interface{}{"name": "open"}, nil)
	assertStatusCode(t, w, http.StatusCreated)

	w = ts.do(http.MethodPost, "/public/instances/missing/items", map[string]interface{}{"name": "x"}, nil)
	assertStatusCode(t, w, http.StatusNotFound)
	assertJSONError(t, w, "Instance not found")

	w = ts.do(http.MethodGet, "/public/items", nil, nil)
	assertStatusCode(t, w, http.StatusOK)

	var catalog struct {
		Total int                  `json:"total"`
		Items []models.CatalogItem `json:"items"`
	}
	decodeJSON(t, w, &catalog)
	require.Equal(t, 1, catalog.Total)
	assert.Equal(t, inst.ID, catalog.Items[0].InstanceID)
	assert.Equal(t, "open", catalog.Items[0].Name)
}

func TestHandleListAllItemsByKey(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	other := ts.createInstance(t)

	for i := 0; i < 12; i++ {
		ts.createItem(t, inst, map[string]interface{}{"name": fmt.Sprintf("item-%d", i)})
	}
	ts.createItem(t, other, map[string]interface{}{"name": "elsewhere"})

	w := ts.do(http.MethodGet, "/items", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)

	var items []models.Item
	decodeJSON(t, w, &items)
	require.Len(t, items, 12)
	assert.Equal(t, "item-0", items[0].Name)
	assert.Equal(t, "item-11", items[11].Name)

	w = ts.do(http.MethodGet, "/items", nil, nil)
	assertStatusCode(t, w, http.StatusUnauthorized)
}

func TestHandleListAllItemsByKey_EmptyInstance(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	w := ts.do(http.MethodGet, "/items", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	assert.JSONEq(t, `[]`, w.Body.String())
}
