package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khabaroff/mockhook/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamLines reads an SSE body line by line into a channel
func streamLines(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// nextLine returns the next line accepted by match, skipping the rest
func nextLine(t *testing.T, lines <-chan string, match func(string) bool) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if match(line) {
				return line
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream line")
		}
	}
}

func isData(line string) bool { return strings.HasPrefix(line, "data: ") }

func decodeDataLine(t *testing.T, line string) models.WebhookLog {
	t.Helper()
	var entry models.WebhookLog
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &entry))
	return entry
}

func TestHandleSSE_BacklogThenLive(t *testing.T) {
	ts := newTestServer(t, nil)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	w := ts.do(http.MethodPost, "/webhooks/tail", map[string]string{"step": "backlog"}, nil)
	assertStatusCode(t, w, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/webhooks/tail/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := streamLines(t, resp)
	nextLine(t, lines, func(l string) bool { return l == ": connected" })

	backlog := decodeDataLine(t, nextLine(t, lines, isData))
	assert.JSONEq(t, `{"step":"backlog"}`, string(backlog.Body))

	w = ts.do(http.MethodPost, "/webhooks/tail", map[string]string{"step": "live"}, nil)
	assertStatusCode(t, w, http.StatusOK)

	live := decodeDataLine(t, nextLine(t, lines, isData))
	assert.JSONEq(t, `{"step":"live"}`, string(live.Body))
	assert.NotEqual(t, backlog.ID, live.ID)

	// heartbeat comment
	nextLine(t, lines, func(l string) bool { return l == ":" })
}

func TestHandleSSE_ResetOnClear(t *testing.T) {
	ts := newTestServer(t, nil)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	ts.do(http.MethodPost, "/webhooks/tail", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/webhooks/tail/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := streamLines(t, resp)
	nextLine(t, lines, isData)

	ts.do(http.MethodDelete, "/webhooks/tail/logs", nil, nil)
	nextLine(t, lines, func(l string) bool { return l == "event: reset" })
}

func TestHandleSSE_PollMode(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(http.MethodPost, "/webhooks/poll", map[string]int{"n": 1}, nil)
	ts.do(http.MethodPost, "/webhooks/poll", map[string]int{"n": 2}, nil)

	w := ts.do(http.MethodGet, "/webhooks/poll/stream?poll=true", nil, nil)
	assertStatusCode(t, w, http.StatusOK)

	var logs []models.WebhookLog
	decodeJSON(t, w, &logs)
	require.Len(t, logs, 2)
	assert.JSONEq(t, `{"n":2}`, string(logs[0].Body))
}
