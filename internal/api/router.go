package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ws "github.com/rohanmehra24/unify-segment/internal/websocket"
)

// IngestLimiter gates identify/track calls per write key.
type IngestLimiter interface {
	Allow(ctx context.Context, writeKey string, limit int) bool
}

// Deps bundles everything the router wires together.
type Deps struct {
	Pipeline  Pipeline
	Profiles  ProfileReader
	Audiences AudienceService
	Queue     RebuildEnqueuer
	Hub       *ws.Hub
	Limiter   IngestLimiter
	Logger    *slog.Logger

	// IngestRateLimit is calls per write key per second; zero disables.
	IngestRateLimit int

	// Gatherer serves /metrics.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	ingestHandler := NewIngestHandler(deps.Pipeline, deps.Hub)
	profileHandler := NewProfileHandler(deps.Profiles)
	audienceHandler := NewAudienceHandler(deps.Audiences, deps.Queue, deps.Logger)

	// WebSocket activity feed
	r.Get("/ws", deps.Hub.HandleWebSocket)

	// Prometheus metrics
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware(deps.Limiter, deps.IngestRateLimit))
			r.Post("/identify", ingestHandler.Identify)
			r.Post("/track", ingestHandler.Track)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/{id}", profileHandler.Get)
			r.Get("/{id}/events", profileHandler.Events)
		})

		r.Route("/audiences", func(r chi.Router) {
			r.Post("/", audienceHandler.Create)
			r.Get("/", audienceHandler.List)
			r.Get("/{id}", audienceHandler.Get)
			r.Post("/{id}/rebuild", audienceHandler.Rebuild)
			r.Get("/{id}/members", audienceHandler.Members)
		})
	})

	return r
}

// rateLimitMiddleware applies the sliding-window limiter to ingest calls,
// keyed by X-Write-Key with the remote address as fallback.
func rateLimitMiddleware(limiter IngestLimiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && limiter != nil {
				key := r.Header.Get("X-Write-Key")
				if key == "" {
					key = r.RemoteAddr
				}
				if !limiter.Allow(r.Context(), key, limit) {
					respondError(w, http.StatusTooManyRequests, "ingest rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
