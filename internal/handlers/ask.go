package handlers

import (
	"encoding/json"
	"net/http"

	"askgraph/internal/contextutil"
	"askgraph/internal/service"
	"askgraph/internal/vectorstore"
)

// QuestionRequest is the body of ask and search requests.
type QuestionRequest struct {
	Question string `json:"question"`
}

// ResultResponse is one retrieved block.
type ResultResponse struct {
	BlockID    string  `json:"block_id"`
	PageID     string  `json:"page_id"`
	PageName   string  `json:"page_name"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// AskResponse represents the HTTP response payload for questions.
type AskResponse struct {
	// The generated answer, or the fallback answer when nothing matched
	Answer string `json:"answer"`

	// Blocks the answer was based on, best match first
	Results []ResultResponse `json:"results"`

	// Rendered block embeds or references, ready to insert into the graph
	References string `json:"references,omitempty"`
}

// SearchResponse represents the HTTP response payload for semantic search.
type SearchResponse struct {
	Results    []ResultResponse `json:"results"`
	References string           `json:"references,omitempty"`
}

// AskHandler answers questions about the graph.
type AskHandler struct {
	graphService service.GraphService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(graphService service.GraphService) *AskHandler {
	return &AskHandler{graphService: graphService}
}

// ServeHTTP handles POST /api/ask.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.graphService.Query(ctx, req.Question)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Answer:     result.Answer,
		Results:    toResultResponses(result.Results),
		References: result.References,
	})
}

// SearchHandler runs semantic searches over the graph.
type SearchHandler struct {
	graphService service.GraphService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(graphService service.GraphService) *SearchHandler {
	return &SearchHandler{graphService: graphService}
}

// ServeHTTP handles POST /api/search.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.graphService.Search(ctx, req.Question)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to search graph")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse{
		Results:    toResultResponses(result.Results),
		References: result.References,
	})
}

func toResultResponses(results []vectorstore.SearchResult) []ResultResponse {
	out := make([]ResultResponse, len(results))
	for i, r := range results {
		out[i] = ResultResponse{
			BlockID:    r.Chunk.Metadata.BlockID,
			PageID:     r.Chunk.Metadata.PageID,
			PageName:   r.Chunk.Metadata.PageName,
			ChunkIndex: r.Chunk.Index,
			Text:       r.Chunk.Text,
			Score:      r.Score,
		}
	}
	return out
}
