package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_graph_service.go -package=mocks askgraph/internal/service GraphService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
	"askgraph/internal/indexer"
	"askgraph/internal/rag"
	"askgraph/internal/vectorstore"
)

// Syncer refreshes the note store from its source files.
type Syncer interface {
	Sync(ctx context.Context) (graph.SyncReport, error)
}

// Indexer rebuilds and persists the index from the note store.
type Indexer interface {
	IndexGraph(ctx context.Context) (*indexer.Report, error)
}

// IndexLoader owns the live index.
type IndexLoader interface {
	Load(ctx context.Context, handle vectorstore.IndexHandle) error
	Handle() (vectorstore.IndexHandle, bool)
	Len() int
}

// Answerer answers questions against the live index.
type Answerer interface {
	Answer(ctx context.Context, question string) (rag.Answer, error)
}

// QueryResult is the answer to a question with its rendered references.
type QueryResult struct {
	Answer     string                     `json:"answer"`
	Results    []vectorstore.SearchResult `json:"results"`
	References string                     `json:"references,omitempty"`
}

// SearchResponse is the result of a semantic search with its rendered references.
type SearchResponse struct {
	Results    []vectorstore.SearchResult `json:"results"`
	References string                     `json:"references,omitempty"`
}

// GraphService is the entry point used by the host: it indexes the note graph
// and answers questions against the index.
type GraphService interface {
	// Init loads the previously persisted index, if any.
	Init(ctx context.Context) error
	// IndexGraph rebuilds and persists the index and waits for the result.
	IndexGraph(ctx context.Context) (*indexer.Report, error)
	// StartIndexing runs IndexGraph in the background.
	StartIndexing(ctx context.Context) error
	// Query answers a question with retrieval-augmented generation.
	Query(ctx context.Context, question string) (QueryResult, error)
	// Search returns the blocks most similar to a question.
	Search(ctx context.Context, question string) (SearchResponse, error)
	// Status reports the index and the latest indexing run.
	Status(ctx context.Context) Status
}

// Config holds the service settings.
type Config struct {
	Credentials      vectorstore.Credentials
	AskReferences    rag.ReferenceMode
	SearchReferences rag.ReferenceMode
}

// Deps are the collaborators of the service. Syncer may be nil when the note
// store is maintained elsewhere.
type Deps struct {
	Syncer   Syncer
	Indexer  Indexer
	Index    IndexLoader
	Handles  indexer.HandleStore
	Searcher rag.Searcher
	Answerer Answerer
	Tracker  *Tracker
}

type graphService struct {
	deps Deps
	cfg  Config
}

// NewGraphService creates a GraphService.
func NewGraphService(deps Deps, cfg Config) GraphService {
	if deps.Tracker == nil {
		deps.Tracker = NewTracker()
	}
	return &graphService{deps: deps, cfg: cfg}
}

// Init loads the index recorded by the last successful build. A missing index
// is not an error; rejected credentials are.
func (s *graphService) Init(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	id, err := s.deps.Handles.LoadHandleID(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index handle: %w", err)
	}
	if id == "" {
		logger.InfoContext(ctx, "no index has been built yet")
		return nil
	}

	err = s.deps.Index.Load(ctx, vectorstore.IndexHandle{ID: id, Credentials: s.cfg.Credentials})
	switch {
	case err == nil:
		logger.InfoContext(ctx, "index restored", "handle", id, "chunks", s.deps.Index.Len())
		return nil
	case errors.Is(err, apperrors.ErrAuth):
		return err
	case errors.Is(err, apperrors.ErrNotFound):
		logger.WarnContext(ctx, "recorded index no longer exists, rebuild required", "handle", id)
		return nil
	default:
		return fmt.Errorf("failed to restore index: %w", err)
	}
}

func (s *graphService) IndexGraph(ctx context.Context) (*indexer.Report, error) {
	if !s.deps.Tracker.Begin() {
		return nil, apperrors.ErrBuildInProgress
	}
	report, err := s.runIndex(ctx)
	s.deps.Tracker.Finish(report, err)
	return report, err
}

func (s *graphService) StartIndexing(ctx context.Context) error {
	if !s.deps.Tracker.Begin() {
		return apperrors.ErrBuildInProgress
	}

	// The run outlives the request that started it but keeps its logger.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		report, err := s.runIndex(runCtx)
		if err != nil {
			contextutil.LoggerFromContext(runCtx).ErrorContext(runCtx, "background indexing failed", "error", err)
		}
		s.deps.Tracker.Finish(report, err)
	}()
	return nil
}

func (s *graphService) runIndex(ctx context.Context) (*indexer.Report, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if s.deps.Syncer != nil {
		sync, err := s.deps.Syncer.Sync(ctx)
		if err != nil {
			return nil, apperrors.Collaborator("notes", "sync", err)
		}
		logger.InfoContext(ctx, "graph synced",
			"scanned", sync.Scanned,
			"updated", sync.Updated,
			"removed", sync.Removed,
		)
	}

	return s.deps.Indexer.IndexGraph(ctx)
}

func (s *graphService) Query(ctx context.Context, question string) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		logger.WarnContext(ctx, "empty question in query request")
		return QueryResult{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}

	answer, err := s.deps.Answerer.Answer(ctx, question)
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{Answer: answer.Text, Results: answer.Results}
	if refs := rag.RenderReferences(answer.Results, s.cfg.AskReferences); refs != "" {
		result.References = rag.AskReferencePrefix + refs
	}
	return result, nil
}

func (s *graphService) Search(ctx context.Context, question string) (SearchResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		logger.WarnContext(ctx, "empty question in search request")
		return SearchResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}

	results, err := s.deps.Searcher.Search(ctx, question)
	if err != nil {
		return SearchResponse{}, err
	}

	resp := SearchResponse{Results: results}
	if refs := rag.RenderReferences(results, s.cfg.SearchReferences); refs != "" {
		resp.References = rag.SearchReferencePrefix + refs
	}
	return resp, nil
}

func (s *graphService) Status(ctx context.Context) Status {
	status := s.deps.Tracker.Snapshot()
	if handle, ok := s.deps.Index.Handle(); ok {
		status.HandleID = handle.ID
	}
	status.IndexedChunks = s.deps.Index.Len()
	return status
}
