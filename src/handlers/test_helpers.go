package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/mockhook/src/broadcast"
	"github.com/khabaroff/mockhook/src/config"
	"github.com/khabaroff/mockhook/src/database"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/services"
)

// Test helpers for handler tests

// createTestContext creates a test Gin context with recorder
func createTestContext() (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return w, c
}

// testServer is a full router over a temp-file database
type testServer struct {
	router    *gin.Engine
	cfg       *config.Config
	instances *services.InstanceService
	webhooks  *services.WebhookService
}

// newTestServer builds the router; configure may adjust the defaults
func newTestServer(t *testing.T, configure func(cfg *config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Defaults()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.CreateRatePerMinute = 6000
	cfg.ItemsRatePerMinute = 6000
	if configure != nil {
		configure(cfg)
	}

	db := database.NewTestDatabase(t)
	instances := services.NewInstanceService(db, cfg.InstanceTTL)
	t.Cleanup(instances.Close)
	webhooks := services.NewWebhookService(db, broadcast.NewHub(), cfg.MaxLogsPerWebhook, cfg.LogMaxAge)

	router, stop := NewRouter(Dependencies{
		Config:    cfg,
		Health:    db,
		Instances: instances,
		Webhooks:  webhooks,
	})
	t.Cleanup(stop)

	return &testServer{
		router:    router,
		cfg:       cfg,
		instances: instances,
		webhooks:  webhooks,
	}
}

// do sends a request through the router. body may be nil, a string or a
// value to encode as JSON.
func (ts *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// createInstance creates an instance through the API
func (ts *testServer) createInstance(t *testing.T) models.Instance {
	t.Helper()
	w := ts.do(http.MethodPost, "/instances", map[string]string{"name": "Test"}, nil)
	assertStatusCode(t, w, http.StatusCreated)

	var inst models.Instance
	decodeJSON(t, w, &inst)
	return inst
}

// keyHeader returns the API key header for inst
func keyHeader(inst models.Instance) map[string]string {
	return map[string]string{models.APIKeyHeader: inst.APIKey}
}

// decodeJSON parses the response body into v
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response: %v: %s", err, w.Body.String())
	}
}

// assertStatusCode checks if response status code matches expected
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode int) {
	t.Helper()
	if w.Code != expectedCode {
		t.Errorf("expected status %d, got %d: %s", expectedCode, w.Code, w.Body.String())
	}
}

// assertJSONError checks if response contains expected error message
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedError string) {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["error"] != expectedError {
		t.Errorf("expected error '%s', got '%v'", expectedError, response["error"])
	}
}
