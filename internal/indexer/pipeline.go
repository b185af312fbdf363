package indexer

import (
	"context"
	"fmt"
	"time"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
	"askgraph/internal/vectorstore"
)

// HandleStore records the ID of the persisted index between runs.
type HandleStore interface {
	LoadHandleID(ctx context.Context) (string, error)
	SaveHandleID(ctx context.Context, id string) error
}

// IndexBuilder builds and persists an index in one step.
type IndexBuilder interface {
	Rebuild(ctx context.Context, chunks []graph.Chunk, reuseID string) (vectorstore.IndexHandle, error)
}

// Report describes one indexing run.
type Report struct {
	Pages        int           `json:"pages"`
	Blocks       int           `json:"blocks"`
	Documents    int           `json:"documents"`
	Chunks       int           `json:"chunks"`
	UnknownPages int           `json:"unknown_pages"`
	HandleID     string        `json:"handle_id"`
	Reused       bool          `json:"reused"`
	ChunkStats   ChunkStats    `json:"chunk_stats"`
	IndexVersion string        `json:"index_version"`
	Duration     time.Duration `json:"duration"`
}

// Pipeline turns the note graph into a persisted vector index.
type Pipeline struct {
	notes          graph.NoteStore
	normalizer     *Normalizer
	splitter       *RecursiveSplitter
	builder        IndexBuilder
	handles        HandleStore
	embeddingModel string
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	notes graph.NoteStore,
	splitter *RecursiveSplitter,
	builder IndexBuilder,
	handles HandleStore,
	embeddingModel string,
) *Pipeline {
	return &Pipeline{
		notes:          notes,
		normalizer:     NewNormalizer(notes),
		splitter:       splitter,
		builder:        builder,
		handles:        handles,
		embeddingModel: embeddingModel,
	}
}

// Collect reads every page, keeps the top-level blocks that pass
// ShouldInclude and returns their chunks in graph order.
func (p *Pipeline) Collect(ctx context.Context) ([]graph.Chunk, Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var report Report

	pages, err := p.notes.ListAllPages(ctx)
	if err != nil {
		return nil, report, apperrors.Collaborator("notes", "list pages", err)
	}
	report.Pages = len(pages)
	logger.InfoContext(ctx, "collecting blocks", "pages", len(pages))

	var blocks []graph.Block
	for _, page := range pages {
		tree, err := p.notes.GetBlockTree(ctx, page.Name)
		if err != nil {
			return nil, report, apperrors.Collaborator("notes", "get block tree", fmt.Errorf("page %q: %w", page.Name, err))
		}
		// Only top-level blocks are candidates. Their documents already
		// carry the direct children.
		for _, b := range tree {
			report.Blocks++
			if ShouldInclude(b) {
				blocks = append(blocks, b)
			}
		}
	}
	logger.InfoContext(ctx, "blocks selected for indexing", "selected", len(blocks), "total", report.Blocks)

	var chunks []graph.Chunk
	for _, b := range blocks {
		doc := p.normalizer.Normalize(ctx, b)
		report.Documents++
		if doc.Metadata.PageName == graph.UnknownPageName {
			report.UnknownPages++
		}
		docChunks, err := p.splitter.Split(doc)
		if err != nil {
			return nil, report, err
		}
		chunks = append(chunks, docChunks...)
	}
	report.Chunks = len(chunks)

	logger.InfoContext(ctx, "documents chunked", "documents", report.Documents, "chunks", report.Chunks)
	return chunks, report, nil
}

// IndexGraph rebuilds the index from the whole graph, persists it under the
// previously recorded handle when there is one, and records the handle.
func (p *Pipeline) IndexGraph(ctx context.Context) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	chunks, report, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no blocks to index: %w", apperrors.ErrEmptyInput)
	}

	reuseID, err := p.handles.LoadHandleID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index handle: %w", err)
	}

	handle, err := p.builder.Rebuild(ctx, chunks, reuseID)
	if err != nil {
		logger.ErrorContext(ctx, "index build failed", "chunks", len(chunks), "error", err)
		return nil, err
	}

	if err := p.handles.SaveHandleID(ctx, handle.ID); err != nil {
		return nil, fmt.Errorf("failed to record index handle: %w", err)
	}

	report.HandleID = handle.ID
	report.Reused = reuseID != "" && reuseID == handle.ID
	report.ChunkStats = ComputeChunkStats(chunks)
	report.IndexVersion = IndexVersion(p.embeddingModel, p.splitter.ChunkSize(), p.splitter.ChunkOverlap())
	report.Duration = time.Since(start)

	logger.InfoContext(ctx, "indexing completed",
		"pages", report.Pages,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"handle", report.HandleID,
		"reused", report.Reused,
		"duration", report.Duration,
	)
	return &report, nil
}
