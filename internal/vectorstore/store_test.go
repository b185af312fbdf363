package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"askgraph/internal/apperrors"
	"askgraph/internal/graph"
	"askgraph/internal/vectorstore"
	vectorstore_mocks "askgraph/internal/vectorstore/mocks"
)

// fakeEmbedder returns fixed vectors per text and [1, 0] for anything unknown.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	batches []int
	failOn  int // 1-based batch number that fails, 0 for never
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	n := len(f.batches)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.failOn == n {
		return nil, errors.New("connection refused")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = f.Embed(ctx, text)
	}
	return out, nil
}

func scored(score float32) []float32 {
	return []float32{score, float32(math.Sqrt(float64(1 - score*score)))}
}

// chunksWithScores returns one chunk per score, embedded so that its cosine
// similarity to [1, 0] equals the score.
func chunksWithScores(emb *fakeEmbedder, scores ...float32) []graph.Chunk {
	if emb.vectors == nil {
		emb.vectors = make(map[string][]float32)
	}
	chunks := make([]graph.Chunk, len(scores))
	for i, s := range scores {
		text := fmt.Sprintf("chunk %d scoring %.2f", i, s)
		emb.vectors[text] = scored(s)
		chunks[i] = graph.Chunk{
			Text:     text,
			Metadata: graph.Metadata{BlockID: fmt.Sprintf("block-%d", i), PageName: "Page"},
		}
	}
	return chunks
}

func plainChunks(n int) []graph.Chunk {
	chunks := make([]graph.Chunk, n)
	for i := range chunks {
		chunks[i] = graph.Chunk{Text: fmt.Sprintf("chunk number %d", i)}
	}
	return chunks
}

func TestStore_Build_EmptyInput(t *testing.T) {
	store := vectorstore.NewStore(&fakeEmbedder{}, nil, vectorstore.StoreConfig{})

	err := store.Build(context.Background(), nil)
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Errorf("Build() error = %v, want ErrEmptyInput", err)
	}
}

func TestStore_Build_Batches(t *testing.T) {
	emb := &fakeEmbedder{}
	var progress []int
	store := vectorstore.NewStore(emb, nil, vectorstore.StoreConfig{
		BatchSize: 200,
		Progress: func(done, total int) {
			if total != 450 {
				t.Errorf("progress total = %d, want 450", total)
			}
			progress = append(progress, done)
		},
	})

	if err := store.Build(context.Background(), plainChunks(450)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if fmt.Sprint(emb.batches) != "[200 200 50]" {
		t.Errorf("batch sizes = %v, want [200 200 50]", emb.batches)
	}
	if fmt.Sprint(progress) != "[200 400 450]" {
		t.Errorf("progress = %v, want [200 400 450]", progress)
	}
	if store.Len() != 450 {
		t.Errorf("Len() = %d, want 450", store.Len())
	}
}

func TestStore_Build_DefaultBatchSize(t *testing.T) {
	emb := &fakeEmbedder{}
	store := vectorstore.NewStore(emb, nil, vectorstore.StoreConfig{})

	if err := store.Build(context.Background(), plainChunks(201)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fmt.Sprint(emb.batches) != "[200 1]" {
		t.Errorf("batch sizes = %v, want [200 1]", emb.batches)
	}
}

func TestStore_Build_FailureKeepsLiveIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	store := vectorstore.NewStore(emb, nil, vectorstore.StoreConfig{BatchSize: 2})
	ctx := context.Background()

	if err := store.Build(ctx, plainChunks(3)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	emb.batches = nil
	emb.failOn = 2
	err := store.Build(ctx, plainChunks(5))
	if !errors.Is(err, apperrors.ErrCollaborator) {
		t.Fatalf("Build() error = %v, want ErrCollaborator", err)
	}
	var collab *apperrors.CollaboratorError
	if !errors.As(err, &collab) || collab.Collaborator != "embedding" {
		t.Errorf("Build() error = %#v, want embedding collaborator error", err)
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d after failed build, want previous 3", store.Len())
	}
}

func TestStore_Build_RejectsConcurrentBuild(t *testing.T) {
	emb := &fakeEmbedder{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	store := vectorstore.NewStore(emb, nil, vectorstore.StoreConfig{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- store.Build(ctx, plainChunks(1)) }()
	<-emb.entered

	if err := store.Build(ctx, plainChunks(1)); !errors.Is(err, apperrors.ErrBuildInProgress) {
		t.Errorf("second Build() error = %v, want ErrBuildInProgress", err)
	}
	if _, err := store.Persist(ctx, ""); !errors.Is(err, apperrors.ErrBuildInProgress) {
		t.Errorf("Persist() during build error = %v, want ErrBuildInProgress", err)
	}

	close(emb.block)
	if err := <-done; err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
}

func TestStore_Rebuild_ReusesHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := vectorstore_mocks.NewMockBackend(ctrl)
	creds := vectorstore.Credentials{Key: "k", Secret: "s"}

	store := vectorstore.NewStore(&fakeEmbedder{}, backend, vectorstore.StoreConfig{
		Credentials: creds,
		Description: "my graph",
	})
	ctx := context.Background()

	backend.EXPECT().
		Save(gomock.Any(), gomock.Any(), creds, "").
		DoAndReturn(func(_ context.Context, snap *vectorstore.Snapshot, _ vectorstore.Credentials, _ string) (string, error) {
			if len(snap.Entries) != 2 || snap.Description != "my graph" || snap.Dimension != 2 {
				t.Errorf("saved snapshot = %+v", snap)
			}
			return "idx-1", nil
		})
	backend.EXPECT().Save(gomock.Any(), gomock.Any(), creds, "idx-1").Return("idx-1", nil)

	first, err := store.Rebuild(ctx, plainChunks(2), "")
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if first.ID != "idx-1" || first.Credentials != creds {
		t.Errorf("Rebuild() handle = %+v", first)
	}

	second, err := store.Rebuild(ctx, plainChunks(4), first.ID)
	if err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second handle = %q, want reused %q", second.ID, first.ID)
	}
	if store.Len() != 4 {
		t.Errorf("Len() = %d, want 4", store.Len())
	}
	if h, ok := store.Handle(); !ok || h.ID != "idx-1" {
		t.Errorf("Handle() = (%+v, %v)", h, ok)
	}
}

func TestStore_Rebuild_PersistFailureKeepsLiveIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := vectorstore_mocks.NewMockBackend(ctrl)
	store := vectorstore.NewStore(&fakeEmbedder{}, backend, vectorstore.StoreConfig{})
	ctx := context.Background()

	if err := store.Build(ctx, plainChunks(1)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	backend.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), "").Return("", errors.New("disk full"))

	_, err := store.Rebuild(ctx, plainChunks(5), "")
	if !errors.Is(err, apperrors.ErrCollaborator) {
		t.Errorf("Rebuild() error = %v, want ErrCollaborator", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want previous 1", store.Len())
	}
}

func TestStore_Persist_NothingBuilt(t *testing.T) {
	store := vectorstore.NewStore(&fakeEmbedder{}, nil, vectorstore.StoreConfig{})
	if _, err := store.Persist(context.Background(), ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Persist() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Load(t *testing.T) {
	creds := vectorstore.Credentials{Key: "k", Secret: "s"}
	snap := &vectorstore.Snapshot{
		Dimension: 2,
		Entries: []vectorstore.Entry{
			{ID: "1", Vector: scored(0.9), Chunk: graph.Chunk{Text: "high"}},
			{ID: "2", Vector: scored(0.1), Chunk: graph.Chunk{Text: "low"}},
		},
	}

	tests := []struct {
		name       string
		handleID   string
		setup      func(b *vectorstore_mocks.MockBackend)
		wantErr    error
		notCollab  bool
		wantLength int
	}{
		{
			name:     "loads snapshot",
			handleID: "idx-1",
			setup: func(b *vectorstore_mocks.MockBackend) {
				b.EXPECT().Load(gomock.Any(), "idx-1", creds).Return(snap, nil)
			},
			wantLength: 2,
		},
		{
			name:      "empty handle",
			handleID:  "",
			setup:     func(b *vectorstore_mocks.MockBackend) {},
			wantErr:   apperrors.ErrNotFound,
			notCollab: true,
		},
		{
			name:     "missing artifact",
			handleID: "gone",
			setup: func(b *vectorstore_mocks.MockBackend) {
				b.EXPECT().Load(gomock.Any(), "gone", creds).Return(nil, fmt.Errorf("index gone: %w", apperrors.ErrNotFound))
			},
			wantErr:   apperrors.ErrNotFound,
			notCollab: true,
		},
		{
			name:     "rejected credentials",
			handleID: "idx-1",
			setup: func(b *vectorstore_mocks.MockBackend) {
				b.EXPECT().Load(gomock.Any(), "idx-1", creds).Return(nil, apperrors.Auth("denied", nil))
			},
			wantErr:   apperrors.ErrAuth,
			notCollab: true,
		},
		{
			name:     "backend failure",
			handleID: "idx-1",
			setup: func(b *vectorstore_mocks.MockBackend) {
				b.EXPECT().Load(gomock.Any(), "idx-1", creds).Return(nil, errors.New("connection reset"))
			},
			wantErr: apperrors.ErrCollaborator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			backend := vectorstore_mocks.NewMockBackend(ctrl)
			tt.setup(backend)

			store := vectorstore.NewStore(&fakeEmbedder{}, backend, vectorstore.StoreConfig{Credentials: creds})
			err := store.Load(context.Background(), vectorstore.IndexHandle{ID: tt.handleID, Credentials: creds})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
				}
				if tt.notCollab && errors.Is(err, apperrors.ErrCollaborator) {
					t.Errorf("Load() error = %v should not be a collaborator error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if store.Len() != tt.wantLength {
				t.Errorf("Len() = %d, want %d", store.Len(), tt.wantLength)
			}
		})
	}
}

func TestStore_Search_NoIndex(t *testing.T) {
	store := vectorstore.NewStore(&fakeEmbedder{}, nil, vectorstore.StoreConfig{})
	_, err := store.Search(context.Background(), []float32{1, 0}, vectorstore.SearchOptions{MinScore: 0.5, MaxK: 20, KIncrement: 2})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Search() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Search_ScoreThreshold(t *testing.T) {
	tests := []struct {
		name       string
		scores     []float32
		opts       vectorstore.SearchOptions
		wantCount  int
		wantScores []float32
	}{
		{
			name:       "widens until candidates run out",
			scores:     []float32{0.9, 0.8, 0.7, 0.65, 0.61},
			opts:       vectorstore.SearchOptions{MinScore: 0.6, MaxK: 20, KIncrement: 2},
			wantCount:  5,
			wantScores: []float32{0.9, 0.8, 0.7, 0.65, 0.61},
		},
		{
			name:       "stops at first candidate below threshold",
			scores:     []float32{0.9, 0.3, 0.8, 0.2, 0.7, 0.1},
			opts:       vectorstore.SearchOptions{MinScore: 0.6, MaxK: 20, KIncrement: 2},
			wantCount:  3,
			wantScores: []float32{0.9, 0.8, 0.7},
		},
		{
			name:      "capped at MaxK",
			scores:    []float32{0.99, 0.98, 0.97, 0.96, 0.95, 0.94, 0.93, 0.92, 0.91, 0.9},
			opts:      vectorstore.SearchOptions{MinScore: 0.6, MaxK: 5, KIncrement: 2},
			wantCount: 5,
		},
		{
			name:      "nothing clears threshold",
			scores:    []float32{0.5, 0.4, 0.3},
			opts:      vectorstore.SearchOptions{MinScore: 0.6, MaxK: 20, KIncrement: 2},
			wantCount: 0,
		},
		{
			name:      "threshold is inclusive",
			scores:    []float32{0.6},
			opts:      vectorstore.SearchOptions{MinScore: 0.6, MaxK: 20, KIncrement: 2},
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &fakeEmbedder{}
			chunks := chunksWithScores(emb, tt.scores...)
			store := vectorstore.NewStore(emb, nil, vectorstore.StoreConfig{})
			ctx := context.Background()

			if err := store.Build(ctx, chunks); err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			// Nudge the query a hair towards the stored vectors so an exact
			// threshold match is not lost to float rounding.
			query := []float32{1, 1e-7}
			results, err := store.Search(ctx, query, tt.opts)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(results) != tt.wantCount {
				t.Fatalf("Search() returned %d results, want %d", len(results), tt.wantCount)
			}
			for i := 1; i < len(results); i++ {
				if results[i].Score > results[i-1].Score {
					t.Errorf("results not in descending order at %d", i)
				}
			}
			for i, want := range tt.wantScores {
				if math.Abs(float64(results[i].Score-want)) > 1e-4 {
					t.Errorf("result %d score = %v, want %v", i, results[i].Score, want)
				}
			}
		})
	}
}

func TestStore_Search_InvalidOptions(t *testing.T) {
	store := vectorstore.NewStore(&fakeEmbedder{}, nil, vectorstore.StoreConfig{})
	ctx := context.Background()

	for _, opts := range []vectorstore.SearchOptions{
		{MinScore: 0.6, MaxK: 0, KIncrement: 2},
		{MinScore: 0.6, MaxK: 20, KIncrement: 0},
	} {
		if _, err := store.Search(ctx, []float32{1, 0}, opts); !errors.Is(err, apperrors.ErrConfig) {
			t.Errorf("Search(%+v) error = %v, want ErrConfig", opts, err)
		}
	}
}
