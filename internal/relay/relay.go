// Package relay buffers assistant output lines and delivers them to a remote
// progress endpoint in batches. Delivery is best effort: a lost batch must
// never abort the run that produced it.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/pkg/cerr"
)

const (
	DefaultBatchSize      = 10
	DefaultIdleTimeout    = 1000 * time.Millisecond
	DefaultRequestTimeout = 5000 * time.Millisecond
	DefaultTokenLifetime  = 4 * time.Minute
)

// Config configures a Relay. Zero values fall back to the defaults above so
// tests can shrink every knob.
type Config struct {
	Endpoint       string
	Headers        map[string]string
	BatchSize      int
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	TokenLifetime  time.Duration
	TokenProvider  token.Provider
	Client         *http.Client
}

// payload is the wire format of one batch.
type payload struct {
	Timestamp string   `json:"timestamp"`
	Output    []string `json:"output"`
}

// Relay accumulates lines and flushes them when the batch threshold is
// reached, when the idle timeout elapses, or on Close. Closed is terminal:
// lines arriving afterwards are silently dropped.
type Relay struct {
	endpoint       string
	headers        map[string]string
	batchSize      int
	idleTimeout    time.Duration
	requestTimeout time.Duration
	tokens         token.Provider
	client         *http.Client

	mu     sync.Mutex
	buf    []string
	timer  *time.Timer
	closed bool
}

func New(cfg Config) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	tokens := cfg.TokenProvider
	if tokens == nil {
		tokens = token.Static("")
	}
	return &Relay{
		endpoint:       cfg.Endpoint,
		headers:        cfg.Headers,
		batchSize:      cfg.BatchSize,
		idleTimeout:    cfg.IdleTimeout,
		requestTimeout: cfg.RequestTimeout,
		// The cached token is private to this relay: lifetime decisions of
		// one component never affect another's.
		tokens: token.NewCached(tokens, cfg.TokenLifetime),
		client: cfg.Client,
	}
}

// AddChunk splits text on newlines and buffers the non-empty segments. When
// the buffer reaches the batch threshold the flush happens synchronously,
// giving the producer natural backpressure; otherwise the idle timer is
// re-armed. After Close this is a no-op.
func (r *Relay) AddChunk(ctx context.Context, text string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		r.buf = append(r.buf, line)
	}
	if len(r.buf) >= r.batchSize {
		batch := r.takeBatchLocked()
		r.mu.Unlock()
		r.send(ctx, batch)
		return
	}
	if len(r.buf) > 0 {
		r.armTimerLocked()
	}
	r.mu.Unlock()
}

// Flush delivers whatever is buffered, including sub-threshold batches.
// Failures are logged and swallowed; Flush never reports an error.
func (r *Relay) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.takeBatchLocked()
	r.mu.Unlock()
	r.send(ctx, batch)
}

// Close cancels the idle timer, drains the remaining buffer with one final
// flush, and transitions to the terminal closed state.
func (r *Relay) Close(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	batch := r.takeBatchLocked()
	r.mu.Unlock()
	r.send(ctx, batch)
}

// takeBatchLocked swaps out the buffer so lines arriving during the network
// call accumulate into a fresh buffer, never lost, never double-sent. The
// pending idle timer is disarmed. Callers must hold r.mu.
func (r *Relay) takeBatchLocked() []string {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	batch := r.buf
	r.buf = nil
	return batch
}

// armTimerLocked (re)arms the idle-flush timer. Callers must hold r.mu.
func (r *Relay) armTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.idleTimeout, func() {
		r.Flush(context.Background())
	})
}

// send delivers one batch. Every failure mode (token fetch, timeout, non-2xx,
// transport error) is logged as a warning and swallowed.
func (r *Relay) send(ctx context.Context, batch []string) {
	if len(batch) == 0 {
		return
	}

	bearer, err := r.tokens.Token(ctx)
	if err != nil {
		slog.Warn("skipping output batch, token fetch failed", "lines", len(batch), "error", err)
		return
	}

	body, err := json.Marshal(payload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Output:    batch,
	})
	if err != nil {
		slog.Warn("skipping output batch, marshal failed", "lines", len(batch), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Warn("skipping output batch, bad request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("output batch delivery failed", "lines", len(batch), "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("output batch rejected", "lines", len(batch), "status", resp.StatusCode,
			"code", cerr.NewCodeFromHTTPStatus(resp.StatusCode).String())
	}
}
