package handlers

import (
	"net/http"

	"askgraph/internal/contextutil"
	"askgraph/internal/service"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	graphService service.GraphService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(graphService service.GraphService) *IndexHandler {
	return &IndexHandler{graphService: graphService}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP starts a background re-index and returns immediately.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API")

	if err := h.graphService.StartIndexing(ctx); err != nil {
		handleServiceError(ctx, w, err, "Failed to start indexing")
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Poll /api/index/status for progress.",
		Status:  "accepted",
	})
}

// IndexStatusHandler reports the index and the latest indexing run.
type IndexStatusHandler struct {
	graphService service.GraphService
}

// NewIndexStatusHandler creates a new IndexStatusHandler.
func NewIndexStatusHandler(graphService service.GraphService) *IndexStatusHandler {
	return &IndexStatusHandler{graphService: graphService}
}

// ServeHTTP handles GET /api/index/status.
func (h *IndexStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, h.graphService.Status(ctx))
}
