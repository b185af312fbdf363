package indexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"askgraph/internal/apperrors"
	"askgraph/internal/graph"
)

const (
	// DefaultChunkSize is the default maximum chunk length in runes.
	DefaultChunkSize = 300
	// DefaultChunkOverlap is the default number of runes shared by neighbouring chunks.
	DefaultChunkOverlap = 30
)

// DefaultSeparators are tried in order: paragraph, line, sentence, clause, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

// RecursiveSplitter splits text on the coarsest separator that yields small
// enough pieces, then greedily merges neighbouring pieces back up to the
// chunk size while carrying a tail of each chunk into the next.
// Lengths are counted in runes.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

// NewRecursiveSplitter validates the sizes and returns a splitter.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, apperrors.NewConfigError("chunkSize", "must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, apperrors.NewConfigError("chunkOverlap", "must not be negative, got %d", chunkOverlap)
	}
	if chunkSize <= chunkOverlap {
		return nil, apperrors.NewConfigError("chunkOverlap", "must be smaller than chunkSize (%d), got %d", chunkSize, chunkOverlap)
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// ChunkSize returns the maximum chunk length in runes.
func (s *RecursiveSplitter) ChunkSize() int {
	return s.chunkSize
}

// ChunkOverlap returns the overlap carried between chunks.
func (s *RecursiveSplitter) ChunkOverlap() int {
	return s.chunkOverlap
}

// Split cuts doc into ordered chunks that all carry doc's metadata.
func (s *RecursiveSplitter) Split(doc graph.Document) ([]graph.Chunk, error) {
	texts, err := s.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to split block %s: %w", doc.Metadata.BlockID, err)
	}
	chunks := make([]graph.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, graph.Chunk{
			Text:     text,
			Index:    i,
			Metadata: doc.Metadata,
		})
	}
	return chunks, nil
}

// SplitText returns the chunk texts for text. Every chunk is at most chunkSize
// runes, trimmed, and never empty.
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	texts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := texts[:0]
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
