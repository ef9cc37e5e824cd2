package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lines-of-codes/litestore"
)

type treeRepo struct {
	pool  *pgxpool.Pool // nil inside a transaction
	q     querier
	files string
}

const nodeColumns = `id, filename, virtual_path, content_path, is_folder, parent_folder, owner, trashed, created_at, updated_at`

func scanNode(row pgx.Row) (litestore.FileNode, error) {
	var n litestore.FileNode
	err := row.Scan(&n.ID, &n.Filename, &n.VirtualPath, &n.ContentPath, &n.IsFolder, &n.ParentFolder, &n.Owner, &n.Trashed, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *treeRepo) CreateNode(ctx context.Context, node litestore.NewNode) (litestore.FileNode, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (filename, virtual_path, content_path, is_folder, parent_folder, owner)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, r.files, nodeColumns)

	n, err := scanNode(r.q.QueryRow(ctx, query,
		litestore.BaseName(node.VirtualPath), node.VirtualPath, node.ContentPath, node.IsFolder, node.ParentFolder, node.Owner,
	))
	if err != nil {
		return litestore.FileNode{}, fmt.Errorf("create node %s: %w", node.VirtualPath, mapError(err))
	}

	return n, nil
}

func (r *treeRepo) FindByPath(ctx context.Context, owner int64, virtualPath string) (litestore.FileNode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner = $1 AND virtual_path = $2`, nodeColumns, r.files)

	n, err := scanNode(r.q.QueryRow(ctx, query, owner, virtualPath))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return litestore.FileNode{}, fmt.Errorf("find %s: %w", virtualPath, litestore.ErrNotFound)
		}
		return litestore.FileNode{}, fmt.Errorf("find %s: %w", virtualPath, err)
	}

	return n, nil
}

func (r *treeRepo) GetNode(ctx context.Context, id int64) (litestore.FileNode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, nodeColumns, r.files)

	n, err := scanNode(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return litestore.FileNode{}, fmt.Errorf("get node %d: %w", id, litestore.ErrNotFound)
		}
		return litestore.FileNode{}, fmt.Errorf("get node %d: %w", id, err)
	}

	return n, nil
}

func (r *treeRepo) ListChildren(ctx context.Context, parentID int64, includeTrashed bool) ([]litestore.FileNode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_folder = $1 AND ($2 OR NOT trashed)
		ORDER BY is_folder DESC, filename, id
	`, nodeColumns, r.files)

	rows, err := r.q.Query(ctx, query, parentID, includeTrashed)
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", parentID, err)
	}
	defer rows.Close()

	children := []litestore.FileNode{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("list children of %d: scan: %w", parentID, err)
		}
		children = append(children, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children of %d: rows: %w", parentID, err)
	}

	return children, nil
}

func (r *treeRepo) SetTrashed(ctx context.Context, id int64, trashed bool) error {
	query := fmt.Sprintf(`UPDATE %s SET trashed = $1, updated_at = NOW() WHERE id = $2`, r.files)

	tag, err := r.q.Exec(ctx, query, trashed, id)
	if err != nil {
		return fmt.Errorf("set trashed %d: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("set trashed %d", id))
}

func (r *treeRepo) HardDelete(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1) RETURNING content_path`, r.files)

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("hard delete: %w", err)
	}

	contentPaths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("hard delete: %w", mapError(err))
	}

	return contentPaths, nil
}

func (r *treeRepo) RewritePath(ctx context.Context, id, parentID int64, virtualPath string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_folder = $1, virtual_path = $2, filename = $3, updated_at = NOW()
		WHERE id = $4
	`, r.files)

	tag, err := r.q.Exec(ctx, query, parentID, virtualPath, litestore.BaseName(virtualPath), id)
	if err != nil {
		return fmt.Errorf("rewrite path %d to %s: %w", id, virtualPath, mapError(err))
	}

	return expectRow(tag, fmt.Sprintf("rewrite path %d", id))
}

func (r *treeRepo) ContentRefs(ctx context.Context, contentPaths []string) (map[string]int, error) {
	refs := make(map[string]int, len(contentPaths))
	if len(contentPaths) == 0 {
		return refs, nil
	}

	query := fmt.Sprintf(`
		SELECT content_path, COUNT(*) FROM %s
		WHERE content_path = ANY($1)
		GROUP BY content_path
	`, r.files)

	rows, err := r.q.Query(ctx, query, contentPaths)
	if err != nil {
		return nil, fmt.Errorf("content refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("content refs: scan: %w", err)
		}
		refs[p] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content refs: rows: %w", err)
	}

	return refs, nil
}

func (r *treeRepo) HasTrashedAncestor(ctx context.Context, owner int64, virtualPath string) (bool, error) {
	ancestors := litestore.AncestorPaths(virtualPath)
	if len(ancestors) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE owner = $1 AND trashed AND virtual_path = ANY($2)
		)
	`, r.files)

	var hidden bool
	if err := r.q.QueryRow(ctx, query, owner, ancestors).Scan(&hidden); err != nil {
		return false, fmt.Errorf("trashed ancestor of %s: %w", virtualPath, err)
	}

	return hidden, nil
}

// WithTx runs fn in a transaction holding an advisory lock on owner, so
// recursive operations of one user never interleave.
func (r *treeRepo) WithTx(ctx context.Context, owner int64, fn func(ctx context.Context, tx litestore.TreeRepo) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, owner); err != nil {
			return fmt.Errorf("lock owner %d: %w", owner, err)
		}
		return fn(ctx, &treeRepo{q: tx, files: r.files})
	})
}
