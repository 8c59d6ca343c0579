package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandleMock_ServesConfiguredItem(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	ts.createItem(t, inst, map[string]interface{}{
		"name":     "users",
		"method":   "post",
		"path":     "/users",
		"status":   201,
		"headers":  map[string]string{"X-Mock": "yes"},
		"response": map[string]interface{}{"id": 7},
	})

	w := ts.do(http.MethodPost, "/mock/"+inst.ID+"/users", nil, nil)
	assertStatusCode(t, w, http.StatusCreated)
	assert.Equal(t, "yes", w.Header().Get("X-Mock"))
	assert.JSONEq(t, `{"id":7}`, w.Body.String())

	w = ts.do(http.MethodGet, "/mock/"+inst.ID+"/users", nil, nil)
	assertStatusCode(t, w, http.StatusNotFound)
	assertJSONError(t, w, "Endpoint not found")

	w = ts.do(http.MethodGet, "/mock/missing/users", nil, nil)
	assertStatusCode(t, w, http.StatusNotFound)
	assertJSONError(t, w, "Instance not found")
}

func TestHandleMock_HonoursDelay(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	ts.createItem(t, inst, map[string]interface{}{
		"name":  "slow",
		"path":  "slow",
		"delay": 60,
	})

	start := time.Now()
	w := ts.do(http.MethodGet, "/mock/"+inst.ID+"/slow", nil, nil)
	assertStatusCode(t, w, http.StatusOK)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, "null", w.Body.String())
}

func TestHandleMock_ContentTypeHeader(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	ts.createItem(t, inst, map[string]interface{}{
		"name":     "text",
		"path":     "/text",
		"headers":  map[string]string{"content-type": "text/plain"},
		"response": "hello",
	})

	w := ts.do(http.MethodGet, "/mock/"+inst.ID+"/text", nil, nil)
	assertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, `"hello"`, w.Body.String())
}
