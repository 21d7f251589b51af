package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfujii/agenthook/internal/config"
	"github.com/kfujii/agenthook/internal/event"
	"github.com/kfujii/agenthook/internal/trigger"
)

func newTestServer(t *testing.T) (*httptest.Server, <-chan trigger.Event) {
	t.Helper()
	env := &config.Env{}
	env.APIKey = "secret"

	bus := event.NewBus()
	id, events := bus.Subscribe(8)
	t.Cleanup(func() { bus.Unsubscribe(id) })

	srv := httptest.NewServer(NewServer(env, bus).Handler())
	t.Cleanup(srv.Close)
	return srv, events
}

func postEvent(t *testing.T, srv *httptest.Server, apiKey, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/events", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthBypassesAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventsRequireAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postEvent(t, srv, "", `{"event_name":"schedule"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postEvent(t, srv, "wrong", `{"event_name":"schedule"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEventsAcceptedAndPublished(t *testing.T) {
	srv, events := newTestServer(t)

	body := `{
		"event_name": "issue_comment",
		"payload": {
			"action": "created",
			"issue": {"number": 3, "title": "t", "body": "b"},
			"comment": {"id": 5, "body": "@claude hi", "user": {"login": "alice"}}
		}
	}`
	resp := postEvent(t, srv, "secret", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		EventID string `json:"event_id"`
		Kind    string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.EventID)
	assert.Equal(t, "issue_comment", out.Kind)

	select {
	case e := <-events:
		assert.Equal(t, out.EventID, e.ID)
		assert.Equal(t, "@claude hi", e.Body)
	case <-time.After(time.Second):
		t.Fatal("event not published to bus")
	}
}

func TestEventsRejectBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("invalid JSON", func(t *testing.T) {
		resp := postEvent(t, srv, "secret", "{nope")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown event name", func(t *testing.T) {
		resp := postEvent(t, srv, "secret", `{"event_name":"deployment_status","payload":{}}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/nope", nil)
		require.NoError(t, err)
		req.Header.Set("X-API-Key", "secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
