package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"askgraph/internal/graph"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// ChunkStats summarizes chunk lengths, in runes.
type ChunkStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeChunkStats returns length statistics for chunks.
func ComputeChunkStats(chunks []graph.Chunk) ChunkStats {
	lengths := make([]int, 0, len(chunks))
	for _, c := range chunks {
		lengths = append(lengths, utf8.RuneCountInString(c.Text))
	}
	return computeLengthStats(lengths)
}

// computeLengthStats computes min, max, mean, and p95 from lengths.
func computeLengthStats(lengths []int) ChunkStats {
	if len(lengths) == 0 {
		return ChunkStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, l := range lengths {
		sum += l
	}
	mean := float64(sum) / float64(len(lengths))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}

// IndexVersion identifies an index build by chunker version, embedding model
// and chunking parameters. Indexes with different versions are not comparable.
func IndexVersion(embeddingModel string, chunkSize, chunkOverlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|chunkOverlap=%d",
		ChunkerVersion, embeddingModel, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}
