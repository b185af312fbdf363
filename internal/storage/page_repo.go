package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"askgraph/internal/apperrors"
	"askgraph/internal/graph"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = fmt.Errorf("record %w", apperrors.ErrNotFound)
)

// PageRepo stores pages and their block trees.
// It implements graph.NoteStore and graph.PageWriter.
type PageRepo struct {
	db *sql.DB
}

var (
	_ graph.NoteStore  = (*PageRepo)(nil)
	_ graph.PageWriter = (*PageRepo)(nil)
)

// NewPageRepo creates a new PageRepo.
func NewPageRepo(db *sql.DB) *PageRepo {
	return &PageRepo{db: db}
}

// ListAllPages returns all pages ordered by name.
func (r *PageRepo) ListAllPages(ctx context.Context) ([]graph.Page, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, path, journal FROM pages ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var pages []graph.Page
	for rows.Next() {
		var p graph.Page
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.Journal); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pages: %w", err)
	}
	return pages, nil
}

// GetPage returns the page with the given ID, or nil if there is none.
func (r *PageRepo) GetPage(ctx context.Context, pageID string) (*graph.Page, error) {
	var p graph.Page
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, path, journal FROM pages WHERE id = ?",
		pageID,
	).Scan(&p.ID, &p.Name, &p.Path, &p.Journal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	return &p, nil
}

// GetByPath returns the stored record for a page file.
// Returns nil and ErrNotFound if not found.
func (r *PageRepo) GetByPath(ctx context.Context, path string) (*PageRecord, error) {
	var rec PageRecord
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, path, journal, hash, updated_at FROM pages WHERE path = ?",
		path,
	).Scan(&rec.ID, &rec.Name, &rec.Path, &rec.Journal, &rec.Hash, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}

	rec.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PageHash returns the stored content hash for path, or "" if the page is unknown.
func (r *PageRepo) PageHash(ctx context.Context, path string) (string, error) {
	rec, err := r.GetByPath(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Hash, nil
}

type blockNode struct {
	block    graph.Block
	children []*blockNode
}

// GetBlockTree returns the top-level blocks of a page with nested children in outline order.
func (r *PageRepo) GetBlockTree(ctx context.Context, pageName string) ([]graph.Block, error) {
	var pageID string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM pages WHERE name = ?", pageName).Scan(&pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %q: %w", pageName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT seq, id, parent_seq, content FROM blocks WHERE page_id = ? ORDER BY seq",
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	// Blocks are inserted parents first, so a parent is always seen before its children.
	nodes := make(map[int64]*blockNode)
	var roots []*blockNode
	for rows.Next() {
		var seq int64
		var parent sql.NullInt64
		n := &blockNode{}
		if err := rows.Scan(&seq, &n.block.ID, &parent, &n.block.Content); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		n.block.PageID = pageID
		n.block.PageName = pageName
		nodes[seq] = n

		if !parent.Valid {
			roots = append(roots, n)
			continue
		}
		n.block.ParentPresent = true
		p, ok := nodes[parent.Int64]
		if !ok {
			return nil, fmt.Errorf("block %s references unknown parent %d", n.block.ID, parent.Int64)
		}
		p.children = append(p.children, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}

	return toBlocks(roots), nil
}

func toBlocks(nodes []*blockNode) []graph.Block {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]graph.Block, 0, len(nodes))
	for _, n := range nodes {
		b := n.block
		b.Children = toBlocks(n.children)
		out = append(out, b)
	}
	return out
}

// ReplacePage stores page and replaces all of its blocks in one transaction.
// Any existing page with the same ID or path is replaced. A page whose name is
// already stored from a different file is rejected with graph.ErrNameConflict.
func (r *PageRepo) ReplacePage(ctx context.Context, page graph.Page, hash string, blocks []graph.Block) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var ownerPath string
	err = tx.QueryRowContext(ctx,
		"SELECT path FROM pages WHERE (id = ? OR name = ?) AND path <> ? LIMIT 1",
		page.ID, page.Name, page.Path,
	).Scan(&ownerPath)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q is stored from %s", graph.ErrNameConflict, page.Name, ownerPath)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check page name: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM blocks WHERE page_id IN (SELECT id FROM pages WHERE id = ? OR path = ?)",
		page.ID, page.Path,
	); err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM pages WHERE id = ? OR path = ?",
		page.ID, page.Path,
	); err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pages (id, name, path, journal, hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		page.ID, page.Name, page.Path, page.Journal, hash,
	); err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO blocks (id, page_id, parent_seq, position, content) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare block insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	if err := insertBlocks(ctx, stmt, page.ID, sql.NullInt64{}, blocks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page: %w", err)
	}
	return nil
}

func insertBlocks(ctx context.Context, stmt *sql.Stmt, pageID string, parent sql.NullInt64, blocks []graph.Block) error {
	for i, b := range blocks {
		res, err := stmt.ExecContext(ctx, b.ID, pageID, parent, i, b.Content)
		if err != nil {
			return fmt.Errorf("failed to insert block %s: %w", b.ID, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read block id: %w", err)
		}
		if err := insertBlocks(ctx, stmt, pageID, sql.NullInt64{Int64: seq, Valid: true}, b.Children); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMissing removes every page whose path is not in keep.
func (r *PageRepo) DeleteMissing(ctx context.Context, keep []string) (int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, path FROM pages")
	if err != nil {
		return 0, fmt.Errorf("failed to query pages: %w", err)
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		keepSet[p] = struct{}{}
	}

	var stale []string
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan page: %w", err)
		}
		if _, ok := keepSet[path]; !ok {
			stale = append(stale, id)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate pages: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stale)), ",")
	args := make([]any, len(stale))
	for i, id := range stale {
		args[i] = id
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE page_id IN ("+placeholders+")", args...); err != nil {
		return 0, fmt.Errorf("failed to delete blocks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE id IN ("+placeholders+")", args...); err != nil {
		return 0, fmt.Errorf("failed to delete pages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return len(stale), nil
}
