package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"askgraph/internal/contextutil"
	"askgraph/internal/service"
)

// Pinger is a backend that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	graphService       service.GraphService
	backends           map[string]Pinger
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. backends are checked by name
// on every request.
func NewHealthHandler(graphService service.GraphService, backends map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		graphService:       graphService,
		backends:           backends,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles GET /api/health. A backend that cannot be reached makes
// the service unhealthy; an empty index only degrades it.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	names := make([]string, 0, len(h.backends))
	for name := range h.backends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.backends[name].Ping(checkCtx); err != nil {
			logger.WarnContext(ctx, "health check failed", "backend", name, "error", err)
			checks[name] = "error"
			issues = append(issues, name+"_unavailable")
			continue
		}
		checks[name] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	indexStatus := h.graphService.Status(ctx)
	if indexStatus.IndexedChunks > 0 {
		checks["index"] = "ok"
	} else {
		checks["index"] = "empty"
		issues = append(issues, "index_empty")
		if status == "healthy" {
			status = "degraded"
		}
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}
