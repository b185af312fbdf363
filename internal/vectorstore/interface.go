package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_backend.go -package=mocks askgraph/internal/vectorstore Backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"askgraph/internal/graph"
)

// DefaultBatchSize is the number of chunks embedded per request during a build.
const DefaultBatchSize = 200

// Credentials authenticate against the storage backend.
type Credentials struct {
	Key    string
	Secret string
}

// Fingerprint returns a stable digest of the credentials, safe to store.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.Key + ":" + c.Secret))
	return hex.EncodeToString(sum[:])
}

// IndexHandle identifies a persisted index.
type IndexHandle struct {
	ID          string
	Credentials Credentials
}

// Entry is one indexed chunk. Vector is the embedding of Chunk.Text.
type Entry struct {
	ID     string      `json:"id"`
	Vector []float32   `json:"vector"`
	Chunk  graph.Chunk `json:"chunk"`
}

// Snapshot is the portable form of an index.
type Snapshot struct {
	Description string  `json:"description"`
	Dimension   int     `json:"dimension"`
	Entries     []Entry `json:"entries"`
}

// SearchResult is a retrieved chunk and its similarity score.
type SearchResult struct {
	Chunk graph.Chunk `json:"chunk"`
	Score float32     `json:"score"`
}

// SearchOptions control score-threshold retrieval.
type SearchOptions struct {
	MinScore   float32
	MaxK       int
	KIncrement int
}

// Embedder turns text into vectors.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts returns one embedding per input text, in order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend persists and restores index snapshots.
type Backend interface {
	// Save stores snap. An empty handleID creates a new artifact; otherwise the
	// artifact with that ID is overwritten. The artifact ID is returned.
	Save(ctx context.Context, snap *Snapshot, creds Credentials, handleID string) (string, error)

	// Load returns the snapshot stored under handleID.
	Load(ctx context.Context, handleID string, creds Credentials) (*Snapshot, error)
}
