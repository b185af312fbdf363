package rag

import (
	"fmt"
	"strings"

	"askgraph/internal/apperrors"
	"askgraph/internal/vectorstore"
)

// ReferenceMode controls how retrieved blocks are rendered back into the graph.
type ReferenceMode string

const (
	ReferenceNone          ReferenceMode = "none"
	ReferenceEmbeddedBlock ReferenceMode = "embed"
	ReferenceBlockRef      ReferenceMode = "ref"
)

// Prefixes of the rendered reference blocks.
const (
	AskReferencePrefix    = "🔍 "
	SearchReferencePrefix = "📚 Search results:\n"
)

// ParseReferenceMode parses a configured mode. An empty value means embedded blocks.
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch ReferenceMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReferenceEmbeddedBlock:
		return ReferenceEmbeddedBlock, nil
	case ReferenceBlockRef:
		return ReferenceBlockRef, nil
	case ReferenceNone:
		return ReferenceNone, nil
	}
	return "", apperrors.NewConfigError("referenceRenderMode", "must be one of none, embed, ref, got %q", s)
}

// RenderReferences renders one line per distinct block in results, in order.
// It returns "" for ReferenceNone or when no result carries a block ID.
func RenderReferences(results []vectorstore.SearchResult, mode ReferenceMode) string {
	if mode == ReferenceNone {
		return ""
	}

	var b strings.Builder
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		id := r.Chunk.Metadata.BlockID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		switch mode {
		case ReferenceBlockRef:
			fmt.Fprintf(&b, "((%s))\n", id)
		default:
			fmt.Fprintf(&b, "{{embed ((%s))}}\n", id)
		}
	}
	return b.String()
}
