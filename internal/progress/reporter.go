// Package progress emits coarse workflow lifecycle events to the system
// progress endpoint. Every emitter is fire and forget: the call returns
// immediately, the POST proceeds in the background, and any failure is
// logged and discarded. Lifecycle events are never retried or persisted.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/pkg/panicerr"
)

const defaultRequestTimeout = 5000 * time.Millisecond

// Config configures a Reporter. Unlike the relay, the reporter does not
// cache tokens itself: Tokens is consulted once per event and the caller
// owns the caching policy (long-running callers pass a token.Cached).
type Config struct {
	Endpoint       string
	Tokens         token.Provider
	Headers        map[string]string
	RequestTimeout time.Duration
	Client         *http.Client
}

type Reporter struct {
	endpoint       string
	tokens         token.Provider
	headers        map[string]string
	requestTimeout time.Duration
	client         *http.Client
	wg             conc.WaitGroup
}

func NewReporter(cfg Config) *Reporter {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Reporter{
		endpoint:       cfg.Endpoint,
		tokens:         cfg.Tokens,
		headers:        cfg.Headers,
		requestTimeout: cfg.RequestTimeout,
		client:         cfg.Client,
	}
}

// ReportWorkflowInitialized signals that the working branch is ready.
// sessionID is non-empty only when a prior session was resumed.
func (r *Reporter) ReportWorkflowInitialized(branch, baseBranch, sessionID string) {
	r.emit(EventWorkflowInitializing, initializingData{
		Branch:     branch,
		BaseBranch: baseBranch,
		SessionID:  sessionID,
	})
}

// ReportAssistantStarting signals that the assistant process is being spawned.
func (r *Reporter) ReportAssistantStarting() {
	r.emit(EventAssistantStarting, startingData{})
}

// ReportAssistantComplete signals that the assistant process exited.
func (r *Reporter) ReportAssistantComplete(exitCode int, duration time.Duration) {
	r.emit(EventAssistantComplete, completeData{
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
	})
}

// ReportWorkflowFailed signals a failure in the named phase. It must never
// affect the exit code of the overall run.
func (r *Reporter) ReportWorkflowFailed(phase Phase, err error, code string) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.emit(EventWorkflowFailed, failedData{
		Error: failedError{
			Phase:   phase,
			Message: msg,
			Code:    code,
		},
	})
}

// Drain waits for in-flight sends. Optional: emitters never require it.
func (r *Reporter) Drain() {
	r.wg.Wait()
}

func (r *Reporter) emit(eventType EventType, data any) {
	event := envelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EventType: eventType,
		Data:      data,
	}
	slog.Info("workflow lifecycle event", "event_type", string(eventType))

	r.wg.Go(func() {
		if err := panicerr.Safe(func() error {
			return r.post(event)
		})(); err != nil {
			slog.Warn("lifecycle event delivery failed", "event_type", string(eventType), "error", err)
		}
	})
}

func (r *Reporter) post(event envelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", event.EventType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.tokens != nil {
		bearer, err := r.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch token for %s event: %w", event.EventType, err)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
