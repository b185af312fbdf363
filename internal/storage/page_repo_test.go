package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"askgraph/internal/apperrors"
	"askgraph/internal/graph"
)

func writeGraphFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func samplePage() (graph.Page, []graph.Block) {
	page := graph.Page{ID: "page-1", Name: "Work Log", Path: "pages/Work Log.md"}
	blocks := []graph.Block{
		{
			ID:      "b1",
			Content: "Project kickoff with the platform team",
			Children: []graph.Block{
				{ID: "b1a", Content: "decided on Go", ParentPresent: true},
				{
					ID:            "b1b",
					Content:       "next sync on Friday",
					ParentPresent: true,
					Children: []graph.Block{
						{ID: "b1b1", Content: "bring the roadmap", ParentPresent: true},
					},
				},
			},
		},
		{ID: "b2", Content: "short"},
	}
	return page, blocks
}

func TestPageRepo_ReplacePage_GetBlockTree(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepo(db)
	ctx := context.Background()

	page, blocks := samplePage()
	if err := repo.ReplacePage(ctx, page, "hash-1", blocks); err != nil {
		t.Fatalf("ReplacePage() error = %v", err)
	}

	tree, err := repo.GetBlockTree(ctx, "Work Log")
	if err != nil {
		t.Fatalf("GetBlockTree() error = %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("GetBlockTree() returned %d top-level blocks, want 2", len(tree))
	}
	if tree[0].ID != "b1" || tree[1].ID != "b2" {
		t.Errorf("top-level order = [%s %s], want [b1 b2]", tree[0].ID, tree[1].ID)
	}
	if tree[0].ParentPresent {
		t.Error("top-level block should not have a parent")
	}
	if len(tree[0].Children) != 2 || tree[0].Children[1].ID != "b1b" {
		t.Fatalf("children of b1 = %+v", tree[0].Children)
	}
	if !tree[0].Children[0].ParentPresent {
		t.Error("child block should have a parent")
	}
	if len(tree[0].Children[1].Children) != 1 || tree[0].Children[1].Children[0].Content != "bring the roadmap" {
		t.Errorf("grandchildren of b1b = %+v", tree[0].Children[1].Children)
	}
	if tree[1].Children != nil {
		t.Errorf("leaf block children = %v, want nil", tree[1].Children)
	}

	graph.Walk(tree, func(b graph.Block) {
		if b.PageID != "page-1" || b.PageName != "Work Log" {
			t.Errorf("block %s page = (%s, %s)", b.ID, b.PageID, b.PageName)
		}
	})
}

func TestPageRepo_ReplacePage_Replaces(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepo(db)
	ctx := context.Background()

	page, blocks := samplePage()
	if err := repo.ReplacePage(ctx, page, "hash-1", blocks); err != nil {
		t.Fatalf("ReplacePage() error = %v", err)
	}
	if err := repo.ReplacePage(ctx, page, "hash-2", blocks[1:]); err != nil {
		t.Fatalf("second ReplacePage() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM blocks").Scan(&count); err != nil {
		t.Fatalf("count blocks: %v", err)
	}
	if count != 1 {
		t.Errorf("blocks after replace = %d, want 1", count)
	}

	hash, err := repo.PageHash(ctx, page.Path)
	if err != nil {
		t.Fatalf("PageHash() error = %v", err)
	}
	if hash != "hash-2" {
		t.Errorf("PageHash() = %q, want %q", hash, "hash-2")
	}
}

func TestPageRepo_GetPage(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepo(db)
	ctx := context.Background()

	page, blocks := samplePage()
	page.Journal = true
	if err := repo.ReplacePage(ctx, page, "h", blocks); err != nil {
		t.Fatalf("ReplacePage() error = %v", err)
	}

	tests := []struct {
		name     string
		id       string
		wantNil  bool
		wantName string
	}{
		{name: "existing page", id: "page-1", wantName: "Work Log"},
		{name: "missing page", id: "nope", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetPage(ctx, tt.id)
			if err != nil {
				t.Fatalf("GetPage() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("GetPage() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("GetPage() = nil, want page")
			}
			if got.Name != tt.wantName || !got.Journal {
				t.Errorf("GetPage() = %+v", got)
			}
		})
	}
}

func TestPageRepo_GetByPath_NotFound(t *testing.T) {
	repo := NewPageRepo(newTestDB(t))

	_, err := repo.GetByPath(context.Background(), "pages/missing.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByPath() error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Error("storage ErrNotFound should match apperrors.ErrNotFound")
	}

	hash, err := repo.PageHash(context.Background(), "pages/missing.md")
	if err != nil || hash != "" {
		t.Errorf("PageHash() = (%q, %v), want empty hash and no error", hash, err)
	}
}

func TestPageRepo_GetBlockTree_UnknownPage(t *testing.T) {
	repo := NewPageRepo(newTestDB(t))

	_, err := repo.GetBlockTree(context.Background(), "Nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlockTree() error = %v, want ErrNotFound", err)
	}
}

func TestPageRepo_ListAllPages_DeleteMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepo(db)
	ctx := context.Background()

	for _, p := range []graph.Page{
		{ID: "c", Name: "Charlie", Path: "pages/Charlie.md"},
		{ID: "a", Name: "Alpha", Path: "pages/Alpha.md"},
		{ID: "b", Name: "Bravo", Path: "pages/Bravo.md"},
	} {
		blocks := []graph.Block{{ID: p.ID + "-1", Content: "content of " + p.Name}}
		if err := repo.ReplacePage(ctx, p, "h", blocks); err != nil {
			t.Fatalf("ReplacePage(%s) error = %v", p.Name, err)
		}
	}

	pages, err := repo.ListAllPages(ctx)
	if err != nil {
		t.Fatalf("ListAllPages() error = %v", err)
	}
	if len(pages) != 3 || pages[0].Name != "Alpha" || pages[2].Name != "Charlie" {
		t.Errorf("ListAllPages() = %+v, want ordered by name", pages)
	}

	removed, err := repo.DeleteMissing(ctx, []string{"pages/Alpha.md"})
	if err != nil {
		t.Fatalf("DeleteMissing() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteMissing() = %d, want 2", removed)
	}

	pages, err = repo.ListAllPages(ctx)
	if err != nil {
		t.Fatalf("ListAllPages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Name != "Alpha" {
		t.Errorf("pages after DeleteMissing = %+v", pages)
	}

	var blocks int
	if err := db.QueryRow("SELECT COUNT(*) FROM blocks").Scan(&blocks); err != nil {
		t.Fatalf("count blocks: %v", err)
	}
	if blocks != 1 {
		t.Errorf("blocks after DeleteMissing = %d, want 1", blocks)
	}
}

func TestPageRepo_LoaderSync(t *testing.T) {
	root := t.TempDir()
	writeGraphFile(t, root, "pages/Alpha.md", "- alpha block with enough text\n\t- nested detail\n")

	repo := NewPageRepo(newTestDB(t))
	loader := graph.NewLoader(root, repo)
	ctx := context.Background()

	if _, err := loader.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	tree, err := repo.GetBlockTree(ctx, "Alpha")
	if err != nil {
		t.Fatalf("GetBlockTree() error = %v", err)
	}
	if len(tree) != 1 || len(tree[0].Children) != 1 {
		t.Fatalf("tree = %+v, want one block with one child", tree)
	}
	if tree[0].Children[0].Content != "nested detail" {
		t.Errorf("child content = %q", tree[0].Children[0].Content)
	}

	page, err := repo.GetPage(ctx, tree[0].PageID)
	if err != nil || page == nil || page.Name != "Alpha" {
		t.Errorf("GetPage() = (%+v, %v)", page, err)
	}
}

func TestPageRepo_ReplacePage_NameConflict(t *testing.T) {
	repo := NewPageRepo(newTestDB(t))
	ctx := context.Background()

	page, blocks := samplePage()
	if err := repo.ReplacePage(ctx, page, "hash-1", blocks); err != nil {
		t.Fatalf("ReplacePage() error = %v", err)
	}

	other := page
	other.Path = "pages/work-log-copy.md"
	err := repo.ReplacePage(ctx, other, "hash-2", blocks[1:])
	if !errors.Is(err, graph.ErrNameConflict) {
		t.Fatalf("ReplacePage() error = %v, want ErrNameConflict", err)
	}

	// The first file keeps the page and all of its blocks.
	hash, err := repo.PageHash(ctx, page.Path)
	if err != nil || hash != "hash-1" {
		t.Errorf("PageHash(%q) = (%q, %v), want hash-1", page.Path, hash, err)
	}
	if hash, _ := repo.PageHash(ctx, other.Path); hash != "" {
		t.Errorf("PageHash(%q) = %q, want empty", other.Path, hash)
	}
	tree, err := repo.GetBlockTree(ctx, page.Name)
	if err != nil {
		t.Fatalf("GetBlockTree() error = %v", err)
	}
	if len(tree) != 2 {
		t.Errorf("GetBlockTree() returned %d top-level blocks, want 2", len(tree))
	}
}

func TestPageRepo_ReplacePage_RenameSamePath(t *testing.T) {
	repo := NewPageRepo(newTestDB(t))
	ctx := context.Background()

	page, blocks := samplePage()
	if err := repo.ReplacePage(ctx, page, "hash-1", blocks); err != nil {
		t.Fatalf("ReplacePage() error = %v", err)
	}

	renamed := graph.Page{ID: "page-2", Name: "Daily Log", Path: page.Path}
	if err := repo.ReplacePage(ctx, renamed, "hash-2", blocks[1:]); err != nil {
		t.Fatalf("ReplacePage() after a title change error = %v", err)
	}
	pages, err := repo.ListAllPages(ctx)
	if err != nil {
		t.Fatalf("ListAllPages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Name != "Daily Log" {
		t.Errorf("ListAllPages() = %+v, want only Daily Log", pages)
	}
}
