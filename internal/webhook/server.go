// Package webhook exposes the HTTP ingestion surface. GitHub events arrive
// as JSON on POST /api/events, are parsed into trigger events, and are
// published to the in-process bus for the runner.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/kfujii/agenthook/internal/config"
	"github.com/kfujii/agenthook/internal/event"
	"github.com/kfujii/agenthook/internal/trigger"
	"github.com/kfujii/agenthook/pkg/cerr"
	"github.com/kfujii/agenthook/pkg/clog"
)

type Server struct {
	server *http.Server
	env    *config.Env
	bus    *event.Bus
}

func NewServer(env *config.Env, bus *event.Bus) *Server {
	return &Server{env: env, bus: bus}
}

// eventRequest is the body of POST /api/events. event_name carries GitHub's
// event header value, payload the raw webhook payload.
type eventRequest struct {
	EventName string          `json:"event_name"`
	Action    string          `json:"action,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type eventResponse struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
}

// Handler builds the full middleware and routing stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
		)
		r.Post("/events", s.handleEvent)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux))
}

// ListenAndServe starts the HTTP server. The provided context is used as
// the base context for all incoming requests, so cancelling it on shutdown
// also cancels in-flight handlers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting webhook server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to read request body", err)
		return
	}

	var req eventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid JSON body", err)
		return
	}
	if !trigger.ValidKind(req.EventName) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unsupported event_name: "+req.EventName, nil)
		return
	}

	e, err := trigger.ParsePayload(trigger.Kind(req.EventName), req.Payload)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to parse payload", err)
		return
	}
	if req.Action != "" {
		e.Action = req.Action
	}

	clog.AddAttribute(ctx, "event_id", e.ID)
	slog.InfoContext(ctx, "accepted event", "kind", e.Kind, "action", e.Action, "actor", e.Actor)

	s.bus.Publish(e)
	cerr.SetJSONResponse(ctx, eventResponse{EventID: e.ID, Kind: string(e.Kind)})
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for the health endpoint.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
