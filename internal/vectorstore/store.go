package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
)

// ProgressFunc is told how many chunks have been embedded so far.
type ProgressFunc func(done, total int)

// StoreConfig configures a Store.
type StoreConfig struct {
	BatchSize   int // Chunks per embedding request, DefaultBatchSize when zero
	Credentials Credentials
	Description string
	Progress    ProgressFunc
}

// Store owns the live in-memory index and its persisted copy.
// Builds are serialized; searches may run concurrently with each other and with a build.
type Store struct {
	embedder Embedder
	backend  Backend
	cfg      StoreConfig

	buildMu sync.Mutex

	mu     sync.RWMutex
	index  *MemoryIndex
	handle *IndexHandle
}

// NewStore creates a Store with no index loaded.
func NewStore(embedder Embedder, backend Backend, cfg StoreConfig) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Store{
		embedder: embedder,
		backend:  backend,
		cfg:      cfg,
	}
}

// Len returns the number of chunks in the live index.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// Handle returns the handle of the last loaded or persisted index, if any.
func (s *Store) Handle() (IndexHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == nil {
		return IndexHandle{}, false
	}
	return *s.handle, true
}

// Load replaces the live index with the one persisted under handle.
func (s *Store) Load(ctx context.Context, handle IndexHandle) error {
	logger := contextutil.LoggerFromContext(ctx)

	if handle.ID == "" {
		return fmt.Errorf("no index handle: %w", apperrors.ErrNotFound)
	}

	snap, err := s.backend.Load(ctx, handle.ID, handle.Credentials)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load index", "handle", handle.ID, "error", err)
		return backendError("load", err)
	}

	idx, err := FromSnapshot(snap)
	if err != nil {
		return apperrors.Collaborator("storage", "load", err)
	}

	s.mu.Lock()
	s.index = idx
	s.handle = &handle
	s.mu.Unlock()

	logger.InfoContext(ctx, "index loaded", "handle", handle.ID, "chunks", idx.Len(), "dimension", idx.Dimension())
	return nil
}

// Build embeds chunks and makes the result the live index.
// The previous index stays live if any batch fails.
func (s *Store) Build(ctx context.Context, chunks []graph.Chunk) error {
	if !s.buildMu.TryLock() {
		return apperrors.ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	idx, err := s.build(ctx, chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	return nil
}

// Persist saves the live index. With a non-empty reuseID the artifact with that
// ID is overwritten, otherwise a new one is created.
func (s *Store) Persist(ctx context.Context, reuseID string) (IndexHandle, error) {
	if !s.buildMu.TryLock() {
		return IndexHandle{}, apperrors.ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil {
		return IndexHandle{}, fmt.Errorf("nothing to persist: %w", apperrors.ErrNotFound)
	}

	handle, err := s.persist(ctx, idx, reuseID)
	if err != nil {
		return IndexHandle{}, err
	}

	s.mu.Lock()
	s.handle = &handle
	s.mu.Unlock()
	return handle, nil
}

// Rebuild builds a new index from chunks and persists it. The live index is
// swapped only after both steps succeed.
func (s *Store) Rebuild(ctx context.Context, chunks []graph.Chunk, reuseID string) (IndexHandle, error) {
	if !s.buildMu.TryLock() {
		return IndexHandle{}, apperrors.ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	idx, err := s.build(ctx, chunks)
	if err != nil {
		return IndexHandle{}, err
	}

	handle, err := s.persist(ctx, idx, reuseID)
	if err != nil {
		return IndexHandle{}, err
	}

	s.mu.Lock()
	s.index = idx
	s.handle = &handle
	s.mu.Unlock()
	return handle, nil
}

func (s *Store) build(ctx context.Context, chunks []graph.Chunk) (*MemoryIndex, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		return nil, fmt.Errorf("cannot build index: %w", apperrors.ErrEmptyInput)
	}

	total := len(chunks)
	var idx *MemoryIndex
	for start := 0; start < total; start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+s.cfg.BatchSize, total)
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			logger.ErrorContext(ctx, "failed to embed batch", "start", start, "size", len(batch), "error", err)
			return nil, apperrors.Collaborator("embedding", "embed batch", err)
		}
		if len(vectors) != len(batch) {
			return nil, apperrors.Collaborator("embedding", "embed batch",
				fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(batch)))
		}

		entries := make([]Entry, len(batch))
		for i, c := range batch {
			entries[i] = Entry{
				ID:     uuid.New().String(),
				Vector: vectors[i],
				Chunk:  c,
			}
		}

		// The first batch fixes the dimension for the rest of the build.
		if idx == nil {
			idx = NewMemoryIndex(len(vectors[0]))
		}
		if err := idx.Add(entries...); err != nil {
			return nil, apperrors.Collaborator("embedding", "embed batch", err)
		}

		logger.InfoContext(ctx, "embedded batch", "done", end, "total", total)
		if s.cfg.Progress != nil {
			s.cfg.Progress(end, total)
		}
	}

	return idx, nil
}

func (s *Store) persist(ctx context.Context, idx *MemoryIndex, reuseID string) (IndexHandle, error) {
	logger := contextutil.LoggerFromContext(ctx)

	id, err := s.backend.Save(ctx, idx.Snapshot(s.cfg.Description), s.cfg.Credentials, reuseID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to persist index", "reuse_id", reuseID, "error", err)
		return IndexHandle{}, backendError("save", err)
	}

	logger.InfoContext(ctx, "index persisted", "handle", id, "chunks", idx.Len(), "reused", reuseID != "")
	return IndexHandle{ID: id, Credentials: s.cfg.Credentials}, nil
}

// Search returns chunks similar to query using score-threshold retrieval: it
// asks for KIncrement neighbours and keeps widening by KIncrement while every
// candidate clears MinScore, a full page came back, and MaxK is not reached.
func (s *Store) Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.MaxK <= 0 {
		return nil, apperrors.NewConfigError("MaxK", "must be positive, got %d", opts.MaxK)
	}
	if opts.KIncrement <= 0 {
		return nil, apperrors.NewConfigError("KIncrement", "must be positive, got %d", opts.KIncrement)
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil {
		return nil, fmt.Errorf("no index loaded: %w", apperrors.ErrNotFound)
	}
	if len(query) != idx.Dimension() {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), idx.Dimension())
	}

	k := min(opts.KIncrement, opts.MaxK)
	for {
		candidates := idx.NearestNeighbors(query, k)

		results := make([]SearchResult, 0, len(candidates))
		for _, c := range candidates {
			if c.Score >= opts.MinScore {
				results = append(results, c)
			}
		}

		if len(results) < len(candidates) || len(candidates) < k || k >= opts.MaxK {
			contextutil.LoggerFromContext(ctx).DebugContext(ctx, "search completed", "k", k, "results", len(results))
			return results, nil
		}
		k = min(k+opts.KIncrement, opts.MaxK)
	}
}

// backendError keeps not-found and auth failures recognizable and classifies
// everything else as a storage collaborator failure.
func backendError(op string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrAuth) {
		return fmt.Errorf("storage %s: %w", op, err)
	}
	return apperrors.Collaborator("storage", op, err)
}
