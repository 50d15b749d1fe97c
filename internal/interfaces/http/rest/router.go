// Package rest exposes the relationship graph over HTTP.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/application/handlers"
)

// Router creates and configures the HTTP router.
type Router struct {
	relationships *handlers.RelationshipHandler
	types         *handlers.TypeHandler
	people        *handlers.PersonHandler
	logger        *zap.Logger
	metrics       HTTPMetrics
	metricsPage   http.Handler
	corsOrigins   []string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMetrics records every request and serves page at /metrics.
func WithMetrics(metrics HTTPMetrics, page http.Handler) RouterOption {
	return func(rt *Router) {
		rt.metrics = metrics
		rt.metricsPage = page
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) RouterOption {
	return func(rt *Router) { rt.corsOrigins = origins }
}

// NewRouter creates a new router instance.
func NewRouter(
	relationships *handlers.RelationshipHandler,
	types *handlers.TypeHandler,
	people *handlers.PersonHandler,
	logger *zap.Logger,
	opts ...RouterOption,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{
		relationships: relationships,
		types:         types,
		people:        people,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(requestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	if rt.metrics != nil {
		router.Use(requestMetrics(rt.metrics))
	}
	if len(rt.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	router.Get("/health", healthCheck)
	if rt.metricsPage != nil {
		router.Method(http.MethodGet, "/metrics", rt.metricsPage)
	}

	relationships := &relationshipRoutes{handler: rt.relationships, logger: rt.logger}
	types := &typeRoutes{handler: rt.types, logger: rt.logger}
	people := &personRoutes{handler: rt.people, logger: rt.logger}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/relationships", func(r chi.Router) {
			r.Get("/", relationships.list)
			r.Post("/", relationships.create)
			r.Get("/create", relationships.createForm)
			r.Get("/search", relationships.search)
			r.Post("/reindex", relationships.reindex)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", relationships.get)
				r.Put("/", relationships.update)
				r.Patch("/", relationships.update)
				r.Delete("/", relationships.delete)
				r.Get("/edit", relationships.editForm)
				r.Get("/history", relationships.history)
			})
		})

		r.Get("/relationship-types", types.list)

		r.Route("/people", func(r chi.Router) {
			r.Get("/", people.list)
			r.Post("/", people.add)
			r.Get("/{id}", people.get)
		})
	})

	return router
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
