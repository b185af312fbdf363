package vectorstore

import (
	"fmt"
	"math"
	"sort"
)

// MemoryIndex is a brute-force cosine similarity index.
// It is not safe for concurrent mutation; Store guards it.
type MemoryIndex struct {
	dimension int
	entries   []Entry
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension}
}

// Dimension returns the vector size accepted by the index.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Len returns the number of entries.
func (m *MemoryIndex) Len() int {
	return len(m.entries)
}

// Add appends entries. Every vector must match the index dimension.
func (m *MemoryIndex) Add(entries ...Entry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dimension {
			return fmt.Errorf("vector for %s has dimension %d, index expects %d", e.ID, len(e.Vector), m.dimension)
		}
	}
	m.entries = append(m.entries, entries...)
	return nil
}

// NearestNeighbors returns up to k entries closest to query, highest score first.
func (m *MemoryIndex) NearestNeighbors(query []float32, k int) []SearchResult {
	if k <= 0 || len(m.entries) == 0 {
		return nil
	}

	results := make([]SearchResult, 0, len(m.entries))
	for _, e := range m.entries {
		results = append(results, SearchResult{
			Chunk: e.Chunk,
			Score: cosineSimilarity(query, e.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Snapshot copies the index into its portable form.
func (m *MemoryIndex) Snapshot(description string) *Snapshot {
	entries := make([]Entry, len(m.entries))
	copy(entries, m.entries)
	return &Snapshot{
		Description: description,
		Dimension:   m.dimension,
		Entries:     entries,
	}
}

// FromSnapshot rebuilds an index from a stored snapshot.
func FromSnapshot(snap *Snapshot) (*MemoryIndex, error) {
	dimension := snap.Dimension
	if dimension == 0 && len(snap.Entries) > 0 {
		dimension = len(snap.Entries[0].Vector)
	}
	idx := NewMemoryIndex(dimension)
	if err := idx.Add(snap.Entries...); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return idx, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
