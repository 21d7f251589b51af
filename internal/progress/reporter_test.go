package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfujii/agenthook/internal/token"
)

type recorded struct {
	mu     sync.Mutex
	bodies []map[string]any
	auths  []string
}

func (r *recorded) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		r.mu.Lock()
		r.bodies = append(r.bodies, m)
		r.auths = append(r.auths, req.Header.Get("Authorization"))
		r.mu.Unlock()
	}
}

func (r *recorded) events() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, len(r.bodies))
	copy(out, r.bodies)
	return out
}

func TestReporterEventShapes(t *testing.T) {
	rec := &recorded{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	r := NewReporter(Config{Endpoint: srv.URL, Tokens: token.Static("tok")})

	r.ReportWorkflowInitialized("claude/issue-7", "main", "sess-1")
	r.ReportAssistantStarting()
	r.ReportAssistantComplete(0, 1500*time.Millisecond)
	r.ReportWorkflowFailed(PhaseExecution, errors.New("boom"), "process_failed")
	r.Drain()

	events := rec.events()
	require.Len(t, events, 4)

	byType := map[string]map[string]any{}
	for _, e := range events {
		assert.NotEmpty(t, e["timestamp"])
		byType[e["event_type"].(string)] = e["data"].(map[string]any)
	}

	init := byType["workflow_initializing"]
	require.NotNil(t, init)
	assert.Equal(t, "claude/issue-7", init["branch"])
	assert.Equal(t, "main", init["base_branch"])
	assert.Equal(t, "sess-1", init["session_id"])

	require.NotNil(t, byType["claude_starting"])

	complete := byType["claude_complete"]
	require.NotNil(t, complete)
	assert.Equal(t, float64(0), complete["exit_code"])
	assert.Equal(t, float64(1500), complete["duration_ms"])

	failed := byType["workflow_failed"]
	require.NotNil(t, failed)
	errObj, ok := failed["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"phase":   "execution",
		"message": "boom",
		"code":    "process_failed",
	}, errObj)

	rec.mu.Lock()
	for _, a := range rec.auths {
		assert.Equal(t, "Bearer tok", a)
	}
	rec.mu.Unlock()
}

func TestReporterFetchesTokenPerEvent(t *testing.T) {
	rec := &recorded{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	var mu sync.Mutex
	calls := 0
	tokens := token.Func(func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "", errors.New("issuer unavailable")
		}
		return fmt.Sprintf("tok-%d", calls), nil
	})

	r := NewReporter(Config{Endpoint: srv.URL, Tokens: tokens})

	// The first event hits the failing fetch and is dropped; the token
	// source is not latched, so the next event succeeds with a new token.
	r.ReportAssistantStarting()
	r.Drain()
	require.Empty(t, rec.events())

	r.ReportAssistantStarting()
	r.ReportAssistantComplete(0, time.Second)
	r.Drain()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.auths, 2)
	assert.ElementsMatch(t, []string{"Bearer tok-2", "Bearer tok-3"}, rec.auths)
}

func TestReporterReturnsBeforeDelivery(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	r := NewReporter(Config{Endpoint: srv.URL})

	done := make(chan struct{})
	go func() {
		r.ReportAssistantStarting()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitter blocked on the network call")
	}
	close(release)
	r.Drain()
}

func TestReporterFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewReporter(Config{Endpoint: srv.URL})
	// None of these may panic or surface the 502.
	r.ReportWorkflowInitialized("b", "main", "")
	r.ReportWorkflowFailed(PhaseInitialization, errors.New("x"), "spawn_failed")
	r.Drain()
}
