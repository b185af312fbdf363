package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/vectorstore"
)

// Default retrieval settings.
const (
	DefaultMinScore   = 0.6
	DefaultMaxResults = 20
	DefaultKIncrement = 2
)

// IndexSearcher runs score-threshold retrieval over an embedded query.
type IndexSearcher interface {
	Search(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
}

// Retriever answers natural-language searches against the live index.
type Retriever struct {
	embedder vectorstore.Embedder
	index    IndexSearcher
	opts     vectorstore.SearchOptions
}

// NewRetriever creates a Retriever. opts is validated here so that a bad
// setting fails before any embedding call.
func NewRetriever(embedder vectorstore.Embedder, index IndexSearcher, opts vectorstore.SearchOptions) (*Retriever, error) {
	if math.IsNaN(float64(opts.MinScore)) || opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, apperrors.NewConfigError("minSimilarityScore", "must be between 0 and 1, got %g", opts.MinScore)
	}
	if opts.MaxK <= 0 {
		return nil, apperrors.NewConfigError("maxResults", "must be positive, got %d", opts.MaxK)
	}
	if opts.KIncrement <= 0 {
		return nil, apperrors.NewConfigError("kIncrement", "must be positive, got %d", opts.KIncrement)
	}
	return &Retriever{embedder: embedder, index: index, opts: opts}, nil
}

// Options returns the retrieval settings.
func (r *Retriever) Options() vectorstore.SearchOptions {
	return r.opts
}

// Search embeds question and returns the matching chunks, best first.
// No match is an empty result, not an error.
func (r *Retriever) Search(ctx context.Context, question string) ([]vectorstore.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required: %w", apperrors.ErrEmptyInput)
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, apperrors.Collaborator("embedding", "embed question", err)
	}

	results, err := r.index.Search(ctx, vec, r.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	logger.InfoContext(ctx, "retrieval completed",
		"results", len(results),
		"min_score", r.opts.MinScore,
		"max_k", r.opts.MaxK,
	)
	if len(results) > 0 {
		topScores := make([]float32, 0, 3)
		for i := 0; i < len(results) && i < 3; i++ {
			topScores = append(topScores, results[i].Score)
		}
		logger.DebugContext(ctx, "top search results", "top_3_scores", topScores)
	}
	return results, nil
}
