package graph

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"askgraph/internal/contextutil"
)

var propertyLine = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)::\s*(.*)$`)

// SyncReport summarizes one Loader.Sync pass.
type SyncReport struct {
	Scanned   int
	Updated   int
	Unchanged int
	Removed   int
	Conflicts int // Files skipped because another file owns the page name
}

// Loader reads a directory of markdown outline files (pages/ and journals/)
// into a PageWriter. Each top-level list item is a block; nested list items
// are its children.
type Loader struct {
	root   string
	writer PageWriter
	parser goldmark.Markdown
}

// NewLoader creates a loader for the graph rooted at root.
func NewLoader(root string, writer PageWriter) *Loader {
	return &Loader{
		root:   root,
		writer: writer,
		parser: goldmark.New(),
	}
}

// Root returns the graph directory.
func (l *Loader) Root() string {
	return l.root
}

// Sync scans the graph directory and stores every page whose content changed.
// Pages whose files disappeared are removed. When two files resolve to the same
// page name the file stored first keeps it and the other is skipped with a
// warning.
func (l *Loader) Sync(ctx context.Context) (SyncReport, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var report SyncReport

	files, err := l.scan(ctx)
	if err != nil {
		return report, err
	}

	keep := make([]string, 0, len(files))
	var deferred []pendingPage
	for _, relPath := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.Scanned++
		keep = append(keep, relPath)

		content, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(relPath)))
		if err != nil {
			return report, fmt.Errorf("failed to read page file %s: %w", relPath, err)
		}

		hashHex := fmt.Sprintf("%x", sha256.Sum256(content))
		existing, err := l.writer.PageHash(ctx, relPath)
		if err != nil {
			return report, fmt.Errorf("failed to check page hash: %w", err)
		}
		if existing == hashHex {
			logger.DebugContext(ctx, "skipping unchanged page", "rel_path", relPath)
			report.Unchanged++
			continue
		}

		page, blocks := l.ParsePage(relPath, content)
		err = l.writer.ReplacePage(ctx, page, hashHex, blocks)
		if errors.Is(err, ErrNameConflict) {
			// The owner may be a file removed in this pass; retry after cleanup.
			deferred = append(deferred, pendingPage{page: page, hash: hashHex, blocks: blocks})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to store page %s: %w", relPath, err)
		}
		report.Updated++
		logger.DebugContext(ctx, "loaded page", "page", page.Name, "top_level_blocks", len(blocks))
	}

	removed, err := l.writer.DeleteMissing(ctx, keep)
	if err != nil {
		return report, fmt.Errorf("failed to remove deleted pages: %w", err)
	}
	report.Removed = removed

	for _, p := range deferred {
		err := l.writer.ReplacePage(ctx, p.page, p.hash, p.blocks)
		if errors.Is(err, ErrNameConflict) {
			logger.WarnContext(ctx, "skipping page file, name already used by another file",
				"rel_path", p.page.Path,
				"page", p.page.Name,
				"error", err,
			)
			report.Conflicts++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to store page %s: %w", p.page.Path, err)
		}
		report.Updated++
	}

	logger.InfoContext(ctx, "graph sync completed",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"removed", report.Removed,
		"conflicts", report.Conflicts,
	)
	return report, nil
}

type pendingPage struct {
	page   Page
	hash   string
	blocks []Block
}

// scan returns the slash-separated paths of all page files under the root.
func (l *Loader) scan(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if path != l.root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsPageFile(path) {
			return nil
		}

		relPath, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan graph %s: %w", l.root, err)
	}
	return files, nil
}

// skipDir reports directories that never hold pages (app config, backups, hidden dirs).
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "logseq" || name == "assets"
}

// IsPageFile reports whether path looks like a page file of the graph.
func IsPageFile(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".md" && !strings.HasPrefix(base, ".")
}

// ParsePage parses the content of one page file into its page record and block tree.
func (l *Loader) ParsePage(relPath string, content []byte) (Page, []Block) {
	page := Page{
		Name:    pageNameFromPath(relPath),
		Path:    relPath,
		Journal: strings.HasPrefix(relPath, "journals/"),
	}

	doc := l.parser.Parser().Parse(text.NewReader(content))

	var blocks []Block
	position := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if list, ok := n.(*ast.List); ok {
			for item := list.FirstChild(); item != nil; item = item.NextSibling() {
				blocks = append(blocks, buildBlock(item, content, false, strconv.Itoa(position)))
				position++
			}
			continue
		}

		// Content outside any list: page properties or a free paragraph.
		raw := sourceText(n, content)
		body, props := splitProperties(raw)
		if title, ok := props["title"]; ok && title != "" && position == 0 {
			page.Name = title
		}
		if strings.TrimSpace(body) == "" {
			continue
		}
		blocks = append(blocks, Block{
			ID:      blockID(props["id"], strconv.Itoa(position)),
			Content: body,
		})
		position++
	}

	page.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("askgraph/page/"+page.Name)).String()
	assignPage(blocks, page)
	return page, blocks
}

// buildBlock converts one list item (and its nested lists) into a Block.
func buildBlock(item ast.Node, src []byte, hasParent bool, path string) Block {
	var parts []string
	var children []Block
	childPos := 0
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if list, ok := c.(*ast.List); ok {
			for sub := list.FirstChild(); sub != nil; sub = sub.NextSibling() {
				children = append(children, buildBlock(sub, src, true, path+"."+strconv.Itoa(childPos)))
				childPos++
			}
			continue
		}
		if s := sourceText(c, src); s != "" {
			parts = append(parts, s)
		}
	}

	body, props := splitProperties(strings.Join(parts, "\n"))
	return Block{
		ID:            blockID(props["id"], path),
		Content:       body,
		Children:      children,
		ParentPresent: hasParent,
	}
}

// assignPage fills page fields and turns positional IDs into page-scoped UUIDs.
func assignPage(blocks []Block, page Page) {
	for i := range blocks {
		blocks[i].PageID = page.ID
		blocks[i].PageName = page.Name
		if strings.HasPrefix(blocks[i].ID, "pos:") {
			blocks[i].ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("askgraph/block/"+page.Name+"#"+strings.TrimPrefix(blocks[i].ID, "pos:"))).String()
		}
		assignPage(blocks[i].Children, page)
	}
}

// blockID prefers an explicit id:: property; otherwise it returns a positional
// placeholder resolved by assignPage once the page name is known.
func blockID(explicit, path string) string {
	if explicit != "" {
		if id, err := uuid.Parse(explicit); err == nil {
			return id.String()
		}
	}
	return "pos:" + path
}

// sourceText returns the raw source lines of a block node, recursing into
// container blocks that do not carry lines themselves.
func sourceText(n ast.Node, src []byte) string {
	var lines []string
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		if n.Type() != ast.TypeBlock {
			return
		}
		if segs := n.Lines(); segs != nil && segs.Len() > 0 {
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				lines = append(lines, strings.TrimRight(string(seg.Value(src)), "\r\n"))
			}
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(n)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// splitProperties removes "key:: value" lines and returns them as a map.
func splitProperties(raw string) (string, map[string]string) {
	props := make(map[string]string)
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if m := propertyLine.FindStringSubmatch(line); m != nil {
			props[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), props
}

// pageNameFromPath derives a page name from its file name ("a___b.md" -> "a/b").
func pageNameFromPath(relPath string) string {
	name := filepath.Base(relPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "___", "/")
	name = strings.ReplaceAll(name, "%2F", "/")
	return name
}
