package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/khabaroff/mockhook/src/config"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateInstance(t *testing.T) {
	ts := newTestServer(t, nil)

	inst := ts.createInstance(t)
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, "Test", inst.Name)
	assert.True(t, strings.HasPrefix(inst.APIKey, string(models.KeyPrefixTemporary)))
	assert.NotNil(t, inst.Items)
}

func TestHandleCreateInstance_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/instances", nil, nil)
	assertStatusCode(t, w, http.StatusCreated)

	var inst models.Instance
	decodeJSON(t, w, &inst)
	assert.Equal(t, services.DefaultInstanceName, inst.Name)
}

func TestHandleCreateInstance_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/instances", "{not json", nil)
	assertStatusCode(t, w, http.StatusBadRequest)
	assertJSONError(t, w, "Invalid request body")
}

func TestHandleGetInstanceAndKey(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	w := ts.do(http.MethodGet, "/instances/"+inst.ID, nil, nil)
	assertStatusCode(t, w, http.StatusOK)
	var got models.Instance
	decodeJSON(t, w, &got)
	assert.Equal(t, inst.ID, got.ID)

	w = ts.do(http.MethodGet, "/instances/"+inst.ID+"/key", nil, nil)
	assertStatusCode(t, w, http.StatusOK)
	var key map[string]string
	decodeJSON(t, w, &key)
	assert.Equal(t, inst.APIKey, key["apiKey"])

	w = ts.do(http.MethodGet, "/instances/missing", nil, nil)
	assertStatusCode(t, w, http.StatusNotFound)
	assertJSONError(t, w, "Instance not found")

	w = ts.do(http.MethodGet, "/instances/missing/key", nil, nil)
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestHandleDeleteInstance(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)

	w := ts.do(http.MethodDelete, "/instances/"+inst.ID, nil, nil)
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "API key is required")

	w = ts.do(http.MethodDelete, "/instances/"+inst.ID, nil, map[string]string{models.APIKeyHeader: "temp_wrong"})
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "Invalid API key")

	w = ts.do(http.MethodDelete, "/instances/"+inst.ID, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	var body map[string]bool
	decodeJSON(t, w, &body)
	assert.True(t, body["success"])

	w = ts.do(http.MethodGet, "/instances/"+inst.ID, nil, nil)
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestRespondServiceError_CreationInProgress(t *testing.T) {
	w, c := createTestContext()

	respondServiceError(c, "test", services.ErrCreationInProgress)

	assertStatusCode(t, w, http.StatusConflict)
	assertJSONError(t, w, "Instance creation already in progress")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRespondServiceError_UnknownErrorHidesDetail(t *testing.T) {
	w, c := createTestContext()

	respondServiceError(c, "test", assert.AnError)

	assertStatusCode(t, w, http.StatusInternalServerError)
	assertJSONError(t, w, "Internal server error")
	require.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestHandleCreateInstance_RateLimited(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.CreateRatePerMinute = 6
	})

	ts.createInstance(t)

	w := ts.do(http.MethodPost, "/instances", nil, nil)
	assertStatusCode(t, w, http.StatusTooManyRequests)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHandleGetInstanceByKey(t *testing.T) {
	ts := newTestServer(t, nil)
	inst := ts.createInstance(t)
	ts.createInstance(t)

	w := ts.do(http.MethodGet, "/instance", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	var got models.Instance
	decodeJSON(t, w, &got)
	assert.Equal(t, inst.ID, got.ID)
	assert.Equal(t, inst.APIKey, got.APIKey)

	w = ts.do(http.MethodGet, "/instance", nil, nil)
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "API key is required")

	w = ts.do(http.MethodGet, "/instance", nil, map[string]string{models.APIKeyHeader: "temp_unknown"})
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "Invalid API key")

	// a deleted instance's key no longer resolves
	w = ts.do(http.MethodDelete, "/instances/"+inst.ID, nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusOK)
	w = ts.do(http.MethodGet, "/instance", nil, keyHeader(inst))
	assertStatusCode(t, w, http.StatusUnauthorized)
}
