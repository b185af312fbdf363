package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"askgraph/internal/apperrors"
	"askgraph/internal/graph"
	"askgraph/internal/indexer"
	"askgraph/internal/rag"
	"askgraph/internal/service"
	"askgraph/internal/vectorstore"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) Sync(context.Context) (graph.SyncReport, error) {
	f.calls++
	return graph.SyncReport{Scanned: 3, Updated: 1}, f.err
}

type fakeIndexer struct {
	mu      sync.Mutex
	calls   int
	report  *indexer.Report
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeIndexer) IndexGraph(context.Context) (*indexer.Report, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.report, f.err
}

type fakeIndex struct {
	loaded  []vectorstore.IndexHandle
	loadErr error
	handle  *vectorstore.IndexHandle
	chunks  int
}

func (f *fakeIndex) Load(_ context.Context, h vectorstore.IndexHandle) error {
	f.loaded = append(f.loaded, h)
	return f.loadErr
}

func (f *fakeIndex) Handle() (vectorstore.IndexHandle, bool) {
	if f.handle == nil {
		return vectorstore.IndexHandle{}, false
	}
	return *f.handle, true
}

func (f *fakeIndex) Len() int { return f.chunks }

type fakeHandles struct {
	id  string
	err error
}

func (f *fakeHandles) LoadHandleID(context.Context) (string, error) { return f.id, f.err }

func (f *fakeHandles) SaveHandleID(_ context.Context, id string) error {
	f.id = id
	return nil
}

type fakeRetrieval struct {
	results []vectorstore.SearchResult
	text    string
	err     error
}

func (f *fakeRetrieval) Search(context.Context, string) ([]vectorstore.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeRetrieval) Answer(context.Context, string) (rag.Answer, error) {
	if f.err != nil {
		return rag.Answer{}, f.err
	}
	return rag.Answer{Results: f.results, Text: f.text}, nil
}

func searchResult(blockID, page string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		Chunk: graph.Chunk{Text: "text of " + blockID, Metadata: graph.Metadata{BlockID: blockID, PageName: page}},
		Score: 0.9,
	}
}

func TestGraphService_Init(t *testing.T) {
	creds := vectorstore.Credentials{Key: "k", Secret: "s"}

	tests := []struct {
		name       string
		handles    *fakeHandles
		loadErr    error
		wantErr    bool
		wantIs     error
		wantLoaded bool
	}{
		{name: "nothing built yet", handles: &fakeHandles{}},
		{name: "index restored", handles: &fakeHandles{id: "idx-1"}, wantLoaded: true},
		{name: "index gone", handles: &fakeHandles{id: "idx-1"}, loadErr: apperrors.ErrNotFound, wantLoaded: true},
		{name: "credentials rejected", handles: &fakeHandles{id: "idx-1"}, loadErr: apperrors.Auth("load", nil), wantErr: true, wantIs: apperrors.ErrAuth, wantLoaded: true},
		{name: "storage down", handles: &fakeHandles{id: "idx-1"}, loadErr: apperrors.Collaborator("storage", "load", errors.New("disk")), wantErr: true, wantIs: apperrors.ErrCollaborator, wantLoaded: true},
		{name: "settings unreadable", handles: &fakeHandles{err: errors.New("db locked")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &fakeIndex{loadErr: tt.loadErr}
			svc := service.NewGraphService(service.Deps{Index: index, Handles: tt.handles}, service.Config{Credentials: creds})

			err := svc.Init(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Init() error = %v, want %v", err, tt.wantIs)
			}

			if got := len(index.loaded) > 0; got != tt.wantLoaded {
				t.Fatalf("Load called = %v, want %v", got, tt.wantLoaded)
			}
			if tt.wantLoaded && (index.loaded[0].ID != "idx-1" || index.loaded[0].Credentials != creds) {
				t.Errorf("Load handle = %+v", index.loaded[0])
			}
		})
	}
}

func TestGraphService_IndexGraph(t *testing.T) {
	syncer := &fakeSyncer{}
	idx := &fakeIndexer{report: &indexer.Report{Pages: 3, Chunks: 15, HandleID: "idx-1"}}
	svc := service.NewGraphService(service.Deps{
		Syncer:  syncer,
		Indexer: idx,
		Index:   &fakeIndex{handle: &vectorstore.IndexHandle{ID: "idx-1"}, chunks: 15},
		Tracker: service.NewTracker(),
	}, service.Config{})

	report, err := svc.IndexGraph(context.Background())
	if err != nil {
		t.Fatalf("IndexGraph() error = %v", err)
	}
	if report.Chunks != 15 {
		t.Errorf("Chunks = %d, want 15", report.Chunks)
	}
	if syncer.calls != 1 || idx.calls != 1 {
		t.Errorf("sync calls = %d, index calls = %d, want 1 and 1", syncer.calls, idx.calls)
	}

	status := svc.Status(context.Background())
	if status.State != service.StateSucceeded {
		t.Errorf("State = %q, want %q", status.State, service.StateSucceeded)
	}
	if status.LastReport == nil || status.LastReport.HandleID != "idx-1" {
		t.Errorf("LastReport = %+v", status.LastReport)
	}
	if status.HandleID != "idx-1" || status.IndexedChunks != 15 {
		t.Errorf("HandleID = %q, IndexedChunks = %d", status.HandleID, status.IndexedChunks)
	}
	if status.StartedAt == nil || status.FinishedAt == nil {
		t.Error("run timestamps should be set")
	}
}

func TestGraphService_IndexGraph_Errors(t *testing.T) {
	t.Run("sync fails", func(t *testing.T) {
		idx := &fakeIndexer{}
		svc := service.NewGraphService(service.Deps{
			Syncer:  &fakeSyncer{err: errors.New("permission denied")},
			Indexer: idx,
			Index:   &fakeIndex{},
		}, service.Config{})

		_, err := svc.IndexGraph(context.Background())
		if !errors.Is(err, apperrors.ErrCollaborator) {
			t.Errorf("IndexGraph() error = %v, want ErrCollaborator", err)
		}
		if idx.calls != 0 {
			t.Error("index should not be built after a failed sync")
		}
		status := svc.Status(context.Background())
		if status.State != service.StateFailed || status.LastError == "" {
			t.Errorf("status = %+v, want failed with error", status)
		}
	})

	t.Run("empty graph", func(t *testing.T) {
		svc := service.NewGraphService(service.Deps{
			Indexer: &fakeIndexer{err: apperrors.ErrEmptyInput},
			Index:   &fakeIndex{},
		}, service.Config{})

		if _, err := svc.IndexGraph(context.Background()); !errors.Is(err, apperrors.ErrEmptyInput) {
			t.Errorf("IndexGraph() error = %v, want ErrEmptyInput", err)
		}
	})
}

func TestGraphService_StartIndexing(t *testing.T) {
	idx := &fakeIndexer{
		report:  &indexer.Report{Chunks: 4},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	tracker := service.NewTracker()
	svc := service.NewGraphService(service.Deps{Indexer: idx, Index: &fakeIndex{}, Tracker: tracker}, service.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.StartIndexing(ctx); err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}
	<-idx.entered
	// Cancelling the request context must not stop the run.
	cancel()

	if err := svc.StartIndexing(context.Background()); !errors.Is(err, apperrors.ErrBuildInProgress) {
		t.Errorf("second StartIndexing() error = %v, want ErrBuildInProgress", err)
	}
	if _, err := svc.IndexGraph(context.Background()); !errors.Is(err, apperrors.ErrBuildInProgress) {
		t.Errorf("IndexGraph() during a run error = %v, want ErrBuildInProgress", err)
	}

	tracker.Progress(2, 4)
	if got := svc.Status(context.Background()); got.State != service.StateRunning || got.Progress.Done != 2 {
		t.Errorf("status during run = %+v", got)
	}

	close(idx.release)

	deadline := time.Now().Add(2 * time.Second)
	for svc.Status(context.Background()).State == service.StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("background indexing did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := svc.Status(context.Background()); got.State != service.StateSucceeded || got.LastReport.Chunks != 4 {
		t.Errorf("status after run = %+v", got)
	}
}

func TestGraphService_Query(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		retrieval *fakeRetrieval
		mode      rag.ReferenceMode
		wantErr   error
		wantText  string
		wantRefs  string
	}{
		{
			name:     "empty question",
			question: "  ",
			wantErr:  service.ErrInvalidInput,
		},
		{
			name:     "answer with embedded references",
			question: "What is X?",
			retrieval: &fakeRetrieval{
				results: []vectorstore.SearchResult{searchResult("b1", "X"), searchResult("b2", "Y"), searchResult("b1", "X")},
				text:    "X is described on [[X]].",
			},
			mode:     rag.ReferenceEmbeddedBlock,
			wantText: "X is described on [[X]].",
			wantRefs: "🔍 {{embed ((b1))}}\n{{embed ((b2))}}\n",
		},
		{
			name:      "fallback has no references",
			question:  "What is X?",
			retrieval: &fakeRetrieval{results: []vectorstore.SearchResult{}, text: rag.DefaultFallbackAnswer},
			mode:      rag.ReferenceEmbeddedBlock,
			wantText:  rag.DefaultFallbackAnswer,
		},
		{
			name:      "references disabled",
			question:  "What is X?",
			retrieval: &fakeRetrieval{results: []vectorstore.SearchResult{searchResult("b1", "X")}, text: "answer"},
			mode:      rag.ReferenceNone,
			wantText:  "answer",
		},
		{
			name:      "completion fails",
			question:  "What is X?",
			retrieval: &fakeRetrieval{err: apperrors.Collaborator("completion", "generate", errors.New("timeout"))},
			wantErr:   apperrors.ErrCollaborator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieval := tt.retrieval
			if retrieval == nil {
				retrieval = &fakeRetrieval{}
			}
			svc := service.NewGraphService(service.Deps{Answerer: retrieval, Index: &fakeIndex{}}, service.Config{AskReferences: tt.mode})

			got, err := svc.Query(context.Background(), tt.question)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Query() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if got.Answer != tt.wantText {
				t.Errorf("Answer = %q, want %q", got.Answer, tt.wantText)
			}
			if got.References != tt.wantRefs {
				t.Errorf("References = %q, want %q", got.References, tt.wantRefs)
			}
		})
	}
}

func TestGraphService_Search(t *testing.T) {
	retrieval := &fakeRetrieval{results: []vectorstore.SearchResult{searchResult("b1", "X"), searchResult("b2", "Y")}}
	svc := service.NewGraphService(service.Deps{Searcher: retrieval, Index: &fakeIndex{}}, service.Config{SearchReferences: rag.ReferenceBlockRef})

	got, err := svc.Search(context.Background(), "x")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got.Results) != 2 {
		t.Errorf("Results = %d, want 2", len(got.Results))
	}
	if want := "📚 Search results:\n((b1))\n((b2))\n"; got.References != want {
		t.Errorf("References = %q, want %q", got.References, want)
	}

	if _, err := svc.Search(context.Background(), ""); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("Search(\"\") error = %v, want ErrInvalidInput", err)
	}
}
