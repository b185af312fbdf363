package indexer

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
)

const (
	// QuestionMarker prefixes blocks that hold questions asked through the assistant.
	// Such blocks are never indexed so answers do not feed on their own prompts.
	QuestionMarker = "👤 "
	// MinContentLength is the minimum trimmed length, in runes, of an indexable block.
	MinContentLength = 20
)

var pageLinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

// ShouldInclude reports whether block is worth indexing: enough text, not a
// recorded question, and either a top-level block or one with children.
func ShouldInclude(block graph.Block) bool {
	trimmed := strings.TrimSpace(block.Content)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < MinContentLength {
		return false
	}
	if strings.HasPrefix(block.Content, QuestionMarker) {
		return false
	}
	if len(block.Children) == 0 && block.ParentPresent {
		return false
	}
	return true
}

// CleanContent replaces every [[Page Name]] link with its bare page name.
func CleanContent(content string) string {
	return pageLinkPattern.ReplaceAllString(content, "$1")
}

// Normalizer turns blocks into indexable documents.
type Normalizer struct {
	notes graph.NoteStore
}

// NewNormalizer creates a Normalizer that resolves page names through notes.
func NewNormalizer(notes graph.NoteStore) *Normalizer {
	return &Normalizer{notes: notes}
}

// Normalize returns the block text followed by the text of its direct
// children, one per line, with page links cleaned. The page name falls back
// to graph.UnknownPageName when the page cannot be resolved.
func (n *Normalizer) Normalize(ctx context.Context, block graph.Block) graph.Document {
	var sb strings.Builder
	sb.WriteString(block.Content)
	for _, child := range block.Children {
		sb.WriteString("\n")
		sb.WriteString(child.Content)
	}

	return graph.Document{
		Text: CleanContent(sb.String()),
		Metadata: graph.Metadata{
			BlockID:  block.ID,
			PageID:   block.PageID,
			PageName: n.pageName(ctx, block),
		},
	}
}

func (n *Normalizer) pageName(ctx context.Context, block graph.Block) string {
	logger := contextutil.LoggerFromContext(ctx)

	page, err := n.notes.GetPage(ctx, block.PageID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve page, using placeholder name",
			"block_id", block.ID, "page_id", block.PageID, "error", err)
		return graph.UnknownPageName
	}
	if page == nil || page.Name == "" {
		logger.WarnContext(ctx, "page not found, using placeholder name",
			"block_id", block.ID, "page_id", block.PageID)
		return graph.UnknownPageName
	}
	return page.Name
}
