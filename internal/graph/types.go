package graph

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks askgraph/internal/graph NoteStore

import (
	"context"
	"errors"
)

// ErrNameConflict is returned by a PageWriter when a page name is already
// stored from a different file.
var ErrNameConflict = errors.New("page name already used by another file")

// UnknownPageName is used in metadata when a block's page cannot be resolved.
const UnknownPageName = "Unknown"

// Page is a page of the note graph (a regular page or a journal day).
type Page struct {
	ID      string
	Name    string
	Path    string // Source file, relative to the graph root
	Journal bool
}

// Block is a single outline block. Children holds the nested blocks in order.
type Block struct {
	ID            string
	Content       string
	Children      []Block
	PageID        string
	PageName      string
	ParentPresent bool // false for top-level blocks
}

// Metadata is carried from a block to every document and chunk derived from it.
type Metadata struct {
	BlockID  string `json:"block_id"`
	PageID   string `json:"page_id"`
	PageName string `json:"page_name"`
}

// Document is the normalized, indexable text of one block.
type Document struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded piece of a Document.
type Chunk struct {
	Text     string   `json:"text"`
	Index    int      `json:"index"` // Position within the parent document (starts at 0)
	Metadata Metadata `json:"metadata"`
}

// NoteStore is the read side of the note graph.
type NoteStore interface {
	// ListAllPages returns every page in the graph.
	ListAllPages(ctx context.Context) ([]Page, error)
	// GetBlockTree returns the top-level blocks of a page with their nested children.
	GetBlockTree(ctx context.Context, pageName string) ([]Block, error)
	// GetPage returns the page with the given ID, or nil if it does not exist.
	GetPage(ctx context.Context, pageID string) (*Page, error)
}

// PageWriter is the write side used by the Loader.
type PageWriter interface {
	// PageHash returns the stored content hash for a page path, or "" if unknown.
	PageHash(ctx context.Context, path string) (string, error)
	// ReplacePage stores a page and replaces all of its blocks. It returns
	// ErrNameConflict when another path already owns the page name.
	ReplacePage(ctx context.Context, page Page, hash string, blocks []Block) error
	// DeleteMissing removes pages whose path is not in keep and returns how many were removed.
	DeleteMissing(ctx context.Context, keep []string) (int, error)
}

// Walk calls fn for every block in the forest, parents before children.
func Walk(blocks []Block, fn func(Block)) {
	for _, b := range blocks {
		fn(b)
		Walk(b.Children, fn)
	}
}
