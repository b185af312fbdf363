package config

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"askgraph/internal/apperrors"
	"askgraph/internal/indexer"
	"askgraph/internal/llm"
	"askgraph/internal/rag"
	"askgraph/internal/vectorstore"
)

// Storage backends for persisted indexes.
const (
	StorageSQLite = "sqlite"
	StorageQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	BackendHost     string // Root URL of the OpenAI-compatible model server
	LLMAPIKey       string
	EmbeddingModel  string
	CompletionModel string
	// EmbeddingVectorSize is checked against every embedding when set; 0 accepts
	// whatever size the model returns.
	EmbeddingVectorSize int

	StorageBackend string
	QdrantURL      string
	StorageKey     string
	StorageSecret  string

	MinSimilarityScore float32
	MaxResults         int
	KIncrement         int
	ChunkSize          int
	ChunkOverlap       int
	BatchSize          int
	FallbackAnswer     string

	AskReferenceMode    rag.ReferenceMode
	SearchReferenceMode rag.ReferenceMode

	GraphPath     string // Directory of markdown pages; empty disables file loading
	WatchGraph    bool
	WatchDebounce time.Duration

	DBPath    string
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Credentials returns the storage credentials.
func (c *Config) Credentials() vectorstore.Credentials {
	return vectorstore.Credentials{Key: c.StorageKey, Secret: c.StorageSecret}
}

// SearchOptions returns the retrieval settings.
func (c *Config) SearchOptions() vectorstore.SearchOptions {
	return vectorstore.SearchOptions{
		MinScore:   c.MinSimilarityScore,
		MaxK:       c.MaxResults,
		KIncrement: c.KIncrement,
	}
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates every value, so a bad
// setting is reported before any network call.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		BackendHost:     getEnv("BACKEND_HOST", llm.DefaultHost),
		LLMAPIKey:       getEnv("LLM_API_KEY", "ollama"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", llm.DefaultEmbeddingModel),
		CompletionModel: getEnv("COMPLETION_MODEL", llm.DefaultCompletionModel),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageSQLite)),
		QdrantURL:       getEnv("QDRANT_URL", "http://localhost:6333"),
		StorageKey:      os.Getenv("STORAGE_KEY"),
		StorageSecret:   os.Getenv("STORAGE_SECRET"),
		FallbackAnswer:  getEnv("FALLBACK_ANSWER", rag.DefaultFallbackAnswer),
		GraphPath:       os.Getenv("GRAPH_PATH"),
		DBPath:          getEnv("DB_PATH", "./data/askgraph.db"),
		APIPort:         getEnv("API_PORT", "9000"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.EmbeddingVectorSize, err = getInt("EMBEDDING_VECTOR_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.MaxResults, err = getInt("MAX_RESULTS", rag.DefaultMaxResults); err != nil {
		return nil, err
	}
	if cfg.KIncrement, err = getInt("K_INCREMENT", rag.DefaultKIncrement); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", indexer.DefaultChunkSize); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getInt("CHUNK_OVERLAP", indexer.DefaultChunkOverlap); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getInt("BATCH_SIZE", vectorstore.DefaultBatchSize); err != nil {
		return nil, err
	}

	score, err := strconv.ParseFloat(getEnv("MIN_SIMILARITY_SCORE", "0.6"), 32)
	if err != nil {
		return nil, apperrors.NewConfigError("MIN_SIMILARITY_SCORE", "must be a number: %v", err)
	}
	cfg.MinSimilarityScore = float32(score)

	if cfg.AskReferenceMode, err = rag.ParseReferenceMode(os.Getenv("ASK_REFERENCE_MODE")); err != nil {
		return nil, apperrors.NewConfigError("ASK_REFERENCE_MODE", "must be one of none, embed, ref")
	}
	if cfg.SearchReferenceMode, err = rag.ParseReferenceMode(os.Getenv("SEARCH_REFERENCE_MODE")); err != nil {
		return nil, apperrors.NewConfigError("SEARCH_REFERENCE_MODE", "must be one of none, embed, ref")
	}

	if cfg.WatchGraph, err = getBool("WATCH_GRAPH", false); err != nil {
		return nil, err
	}
	if cfg.WatchDebounce, err = time.ParseDuration(getEnv("WATCH_DEBOUNCE", "2s")); err != nil {
		return nil, apperrors.NewConfigError("WATCH_DEBOUNCE", "must be a duration: %v", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, apperrors.NewConfigError("LOG_LEVEL", "must be debug, info, warn or error")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create the data directory for the database file
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.WrapError(err, "failed to create data directory")
	}

	return cfg, nil
}

// Validate checks value ranges and combinations. It returns a *apperrors.ConfigError.
func (c *Config) Validate() error {
	if c.BackendHost == "" {
		return apperrors.NewConfigError("BACKEND_HOST", "is required")
	}
	if c.EmbeddingModel == "" {
		return apperrors.NewConfigError("EMBEDDING_MODEL", "is required")
	}
	if c.CompletionModel == "" {
		return apperrors.NewConfigError("COMPLETION_MODEL", "is required")
	}
	if c.EmbeddingVectorSize < 0 {
		return apperrors.NewConfigError("EMBEDDING_VECTOR_SIZE", "must not be negative")
	}
	switch c.StorageBackend {
	case StorageSQLite:
	case StorageQdrant:
		if c.QdrantURL == "" {
			return apperrors.NewConfigError("QDRANT_URL", "is required for the qdrant backend")
		}
	default:
		return apperrors.NewConfigError("STORAGE_BACKEND", "must be %s or %s, got %q", StorageSQLite, StorageQdrant, c.StorageBackend)
	}
	if math.IsNaN(float64(c.MinSimilarityScore)) || c.MinSimilarityScore < 0 || c.MinSimilarityScore > 1 {
		return apperrors.NewConfigError("MIN_SIMILARITY_SCORE", "must be between 0 and 1")
	}
	if c.MaxResults <= 0 {
		return apperrors.NewConfigError("MAX_RESULTS", "must be greater than 0")
	}
	if c.KIncrement <= 0 {
		return apperrors.NewConfigError("K_INCREMENT", "must be greater than 0")
	}
	if c.ChunkSize <= 0 {
		return apperrors.NewConfigError("CHUNK_SIZE", "must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return apperrors.NewConfigError("CHUNK_OVERLAP", "must be at least 0 and less than CHUNK_SIZE")
	}
	if c.BatchSize <= 0 {
		return apperrors.NewConfigError("BATCH_SIZE", "must be greater than 0")
	}
	if c.WatchGraph && c.GraphPath == "" {
		return apperrors.NewConfigError("WATCH_GRAPH", "requires GRAPH_PATH")
	}
	if c.WatchDebounce <= 0 {
		return apperrors.NewConfigError("WATCH_DEBOUNCE", "must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return apperrors.NewConfigError("LOG_FORMAT", "must be text or json")
	}
	return nil
}

// loadDotEnv loads .env from the working directory or the nearest ancestor
// that has one. Errors are ignored; the file is optional.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewConfigError(key, "must be a valid integer: %v", err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewConfigError(key, "must be true or false: %v", err)
	}
	return v, nil
}
