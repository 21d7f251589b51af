// Package resume fetches a previously archived conversation so a new run
// can continue it. Resumption is best effort: any failure yields nil and
// the caller starts a fresh conversation.
package resume

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/pkg/cerr"
)

const defaultRequestTimeout = 5000 * time.Millisecond

// State is a prior conversation recovered from the resume endpoint.
type State struct {
	// Messages are the raw transcript entries, replayed to the assistant
	// verbatim. Their internal structure is opaque to this package.
	Messages []json.RawMessage
	// Branch is the working branch of the prior run, when recorded.
	Branch string
}

type remotePayload struct {
	Log    []json.RawMessage `json:"log"`
	Branch string            `json:"branch"`
}

// Resolver fetches resume state over HTTP.
type Resolver struct {
	client         *http.Client
	requestTimeout time.Duration
	headers        map[string]string
	tokens         token.Provider
}

type Option func(*Resolver)

func WithClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

func WithHeaders(h map[string]string) Option {
	return func(r *Resolver) { r.headers = h }
}

// WithTokenProvider installs the bearer token source consulted on each
// fetch. The resolver does not cache: long-running callers pass a
// token.Cached so tokens stay fresh across runs.
func WithTokenProvider(tokens token.Provider) Option {
	return func(r *Resolver) { r.tokens = tokens }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.requestTimeout = d }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:         http.DefaultClient,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryResume fetches prior conversation state from endpoint. It returns nil
// when the endpoint is empty, unreachable, returns a non-2xx status, or the
// body lacks a usable transcript. It never returns an error.
func (r *Resolver) TryResume(ctx context.Context, endpoint string) *State {
	if endpoint == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Warn("failed to build resume request", "error", err)
		return nil
	}
	if r.tokens != nil {
		bearer, err := r.tokens.Token(ctx)
		if err != nil {
			slog.Warn("failed to fetch resume token", "error", err)
			return nil
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
		slog.Warn("resume fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("resume endpoint returned non-success status",
			"status", resp.StatusCode, "code", cerr.NewCodeFromHTTPStatus(resp.StatusCode).String())
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("failed to read resume response", "error", err)
		return nil
	}

	var payload remotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("failed to parse resume response", "error", err)
		return nil
	}
	if len(payload.Log) == 0 {
		slog.Info("resume endpoint returned no transcript, starting fresh")
		return nil
	}

	slog.Info("resuming prior conversation", "messages", len(payload.Log), "branch", payload.Branch)
	return &State{Messages: payload.Log, Branch: payload.Branch}
}
