package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"askgraph/internal/handlers"
	"askgraph/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	GraphService service.GraphService
	Backends     map[string]handlers.Pinger // Checked by the health endpoint
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/index", handlers.NewIndexHandler(deps.GraphService))
		r.Method(http.MethodGet, "/index/status", handlers.NewIndexStatusHandler(deps.GraphService))
		r.Method(http.MethodPost, "/ask", handlers.NewAskHandler(deps.GraphService))
		r.Method(http.MethodPost, "/search", handlers.NewSearchHandler(deps.GraphService))
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.GraphService, deps.Backends))
	})

	return r
}
