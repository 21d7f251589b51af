// Package token supplies short-lived bearer credentials for outbound calls.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Provider yields a bearer token for an outbound request.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context) (string, error)

func (f Func) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a Provider that always yields the given token. Used when the
// caller already holds a credential.
func Static(token string) Provider {
	return Func(func(context.Context) (string, error) {
		return token, nil
	})
}

// OIDCProvider fetches an audience-scoped identity token from the GitHub
// Actions token endpoint.
type OIDCProvider struct {
	RequestURL   string
	RequestToken string
	Audience     string
	Client       *http.Client
}

func (p *OIDCProvider) Token(ctx context.Context) (string, error) {
	if p.RequestURL == "" || p.RequestToken == "" {
		return "", fmt.Errorf("identity token endpoint is not configured")
	}

	reqURL := p.RequestURL
	if p.Audience != "" {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + "audience=" + url.QueryEscape(p.Audience)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.RequestToken)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.Value == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return parsed.Value, nil
}

// Cached wraps a Provider with a fixed-lifetime cache. Tokens are refreshed
// lazily on the first use after expiry, never proactively. A fetch failure
// leaves the previous token and its timestamp untouched.
type Cached struct {
	inner    Provider
	lifetime time.Duration
	now      func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func NewCached(inner Provider, lifetime time.Duration) *Cached {
	return &Cached{
		inner:    inner,
		lifetime: lifetime,
		now:      time.Now,
	}
}

func (c *Cached) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Sub(c.fetchedAt) < c.lifetime {
		return c.token, nil
	}

	fresh, err := c.inner.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = fresh
	c.fetchedAt = c.now()
	return c.token, nil
}
