package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"askgraph/internal/apperrors"
	"askgraph/internal/config"
	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
	"askgraph/internal/handlers"
	"askgraph/internal/http"
	"askgraph/internal/indexer"
	"askgraph/internal/llm"
	"askgraph/internal/rag"
	"askgraph/internal/service"
	"askgraph/internal/storage"
	"askgraph/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = contextutil.WithLogger(ctx, logger)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	pageRepo := storage.NewPageRepo(db)
	settingsRepo := storage.NewSettingsRepo(db)

	var backend vectorstore.Backend
	switch cfg.StorageBackend {
	case config.StorageQdrant:
		qdrantBackend, err := vectorstore.NewQdrantBackend(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant backend: %v", err)
		}
		backend = qdrantBackend
		slog.Info("Index storage ready", "backend", "qdrant", "url", cfg.QdrantURL)
	default:
		backend = storage.NewSnapshotRepo(db)
		slog.Info("Index storage ready", "backend", "sqlite")
	}

	embedder := llm.NewEmbeddingsClient(cfg.BackendHost, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingVectorSize)
	llmClient := llm.NewClient(cfg.BackendHost, cfg.LLMAPIKey, cfg.CompletionModel)

	tracker := service.NewTracker()
	store := vectorstore.NewStore(embedder, backend, vectorstore.StoreConfig{
		BatchSize:   cfg.BatchSize,
		Credentials: cfg.Credentials(),
		Description: "askgraph index (" + cfg.EmbeddingModel + ")",
		Progress:    tracker.Progress,
	})

	splitter, err := indexer.NewRecursiveSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create splitter: %v", err)
	}
	pipeline := indexer.NewPipeline(pageRepo, splitter, store, settingsRepo, cfg.EmbeddingModel)

	retriever, err := rag.NewRetriever(embedder, store, cfg.SearchOptions())
	if err != nil {
		log.Fatalf("Failed to create retriever: %v", err)
	}
	engine := rag.NewEngine(retriever, llmClient, cfg.FallbackAnswer)
	slog.Info("RAG engine initialized", "completion_model", cfg.CompletionModel, "embedding_model", cfg.EmbeddingModel)

	// A nil Syncer means pages are written to the database by another process.
	var syncer service.Syncer
	if cfg.GraphPath != "" {
		syncer = graph.NewLoader(cfg.GraphPath, pageRepo)
		slog.Info("Graph loader configured", "path", cfg.GraphPath)
	}

	graphService := service.NewGraphService(service.Deps{
		Syncer:   syncer,
		Indexer:  pipeline,
		Index:    store,
		Handles:  settingsRepo,
		Searcher: retriever,
		Answerer: engine,
		Tracker:  tracker,
	}, service.Config{
		Credentials:      cfg.Credentials(),
		AskReferences:    cfg.AskReferenceMode,
		SearchReferences: cfg.SearchReferenceMode,
	})

	if err := graphService.Init(ctx); err != nil {
		if errors.Is(err, apperrors.ErrAuth) {
			slog.Error("Index storage rejected the configured credentials", "error", err)
		} else {
			slog.Error("Failed to restore index", "error", err)
		}
	}

	if cfg.WatchGraph {
		watcher := graph.NewWatcher(cfg.GraphPath, cfg.WatchDebounce, func(ctx context.Context) error {
			_, err := graphService.IndexGraph(ctx)
			return err
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("Graph watcher stopped", "error", err)
			}
		}()
		slog.Info("Watching graph for changes", "path", cfg.GraphPath, "debounce", cfg.WatchDebounce)
	}

	router := http.NewRouter(&http.Deps{
		GraphService: graphService,
		Backends: map[string]handlers.Pinger{
			"completion": llmClient,
			"embedding":  embedder,
		},
	})

	// Start indexing in background after router is ready
	if err := graphService.StartIndexing(ctx); err != nil {
		slog.Error("Failed to start background indexing", "error", err)
	}

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting API server", "addr", addr)
	slog.Debug("Model backend", "host", cfg.BackendHost)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}
