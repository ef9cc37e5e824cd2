package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lines-of-codes/litestore"
)

// maxVars keeps IN lists well below SQLite's bound parameter limit.
const maxVars = 500

type treeRepo struct {
	db    *sql.DB // nil inside a transaction
	q     dbtx
	files string
}

const nodeColumns = `id, filename, virtual_path, content_path, is_folder, parent_folder, owner, trashed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (litestore.FileNode, error) {
	var n litestore.FileNode
	var parent sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&n.ID, &n.Filename, &n.VirtualPath, &n.ContentPath, &n.IsFolder, &parent, &n.Owner, &n.Trashed, &createdAt, &updatedAt)
	if err != nil {
		return litestore.FileNode{}, err
	}

	if parent.Valid {
		n.ParentFolder = &parent.Int64
	}

	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return litestore.FileNode{}, fmt.Errorf("parse created_at: %w", err)
	}
	n.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return litestore.FileNode{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return n, nil
}

func (r *treeRepo) CreateNode(ctx context.Context, node litestore.NewNode) (litestore.FileNode, error) {
	ts := now()
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (filename, virtual_path, content_path, is_folder, parent_folder, owner, trashed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING %s`, quoteIdentifier(r.files), nodeColumns)

	n, err := scanNode(r.q.QueryRowContext(ctx, query,
		litestore.BaseName(node.VirtualPath), node.VirtualPath, node.ContentPath, node.IsFolder,
		node.ParentFolder, node.Owner, ts, ts,
	))
	if err != nil {
		return litestore.FileNode{}, fmt.Errorf("create node %s: %w", node.VirtualPath, mapError(err))
	}

	return n, nil
}

func (r *treeRepo) FindByPath(ctx context.Context, owner int64, virtualPath string) (litestore.FileNode, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE owner = ? AND virtual_path = ?`, nodeColumns, quoteIdentifier(r.files))

	n, err := scanNode(r.q.QueryRowContext(ctx, query, owner, virtualPath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return litestore.FileNode{}, fmt.Errorf("find %s: %w", virtualPath, litestore.ErrNotFound)
		}
		return litestore.FileNode{}, fmt.Errorf("find %s: %w", virtualPath, err)
	}

	return n, nil
}

func (r *treeRepo) GetNode(ctx context.Context, id int64) (litestore.FileNode, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, nodeColumns, quoteIdentifier(r.files))

	n, err := scanNode(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return litestore.FileNode{}, fmt.Errorf("get node %d: %w", id, litestore.ErrNotFound)
		}
		return litestore.FileNode{}, fmt.Errorf("get node %d: %w", id, err)
	}

	return n, nil
}

func (r *treeRepo) ListChildren(ctx context.Context, parentID int64, includeTrashed bool) ([]litestore.FileNode, error) {
	where := "parent_folder = ? AND trashed = 0"
	if includeTrashed {
		where = "parent_folder = ?"
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE %s ORDER BY is_folder DESC, filename, id`, nodeColumns, quoteIdentifier(r.files), where)

	rows, err := r.q.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", parentID, err)
	}
	defer func() { _ = rows.Close() }()

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
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET trashed = ?, updated_at = ? WHERE id = ?`, quoteIdentifier(r.files))

	result, err := r.q.ExecContext(ctx, query, trashed, now(), id)
	if err != nil {
		return fmt.Errorf("set trashed %d: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("set trashed %d", id))
}

func (r *treeRepo) HardDelete(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var contentPaths []string
	err := r.inTx(ctx, func(q dbtx) error {
		for _, batch := range chunk(ids, maxVars) {
			query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
				`DELETE FROM %s WHERE id IN (%s) RETURNING content_path`, quoteIdentifier(r.files), inList(len(batch)))

			rows, err := q.QueryContext(ctx, query, anySlice(batch)...)
			if err != nil {
				return err
			}

			for rows.Next() {
				var p string
				if err := rows.Scan(&p); err != nil {
					_ = rows.Close()
					return err
				}
				contentPaths = append(contentPaths, p)
			}

			if err := rows.Close(); err != nil {
				return err
			}
			if err := rows.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hard delete: %w", mapError(err))
	}

	return contentPaths, nil
}

func (r *treeRepo) RewritePath(ctx context.Context, id, parentID int64, virtualPath string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET parent_folder = ?, virtual_path = ?, filename = ?, updated_at = ? WHERE id = ?`, quoteIdentifier(r.files))

	result, err := r.q.ExecContext(ctx, query, parentID, virtualPath, litestore.BaseName(virtualPath), now(), id)
	if err != nil {
		return fmt.Errorf("rewrite path %d to %s: %w", id, virtualPath, mapError(err))
	}

	return expectRow(result, fmt.Sprintf("rewrite path %d", id))
}

func (r *treeRepo) ContentRefs(ctx context.Context, contentPaths []string) (map[string]int, error) {
	refs := make(map[string]int, len(contentPaths))

	for _, batch := range chunk(contentPaths, maxVars) {
		query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT content_path, COUNT(*) FROM %s WHERE content_path IN (%s) GROUP BY content_path`,
			quoteIdentifier(r.files), inList(len(batch)))

		rows, err := r.q.QueryContext(ctx, query, anySlice(batch)...)
		if err != nil {
			return nil, fmt.Errorf("content refs: %w", err)
		}

		for rows.Next() {
			var p string
			var n int
			if err := rows.Scan(&p, &n); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("content refs: scan: %w", err)
			}
			refs[p] = n
		}

		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("content refs: %w", err)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("content refs: rows: %w", err)
		}
	}

	return refs, nil
}

func (r *treeRepo) HasTrashedAncestor(ctx context.Context, owner int64, virtualPath string) (bool, error) {
	ancestors := litestore.AncestorPaths(virtualPath)
	if len(ancestors) == 0 {
		return false, nil
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT EXISTS (SELECT 1 FROM %s WHERE owner = ? AND trashed = 1 AND virtual_path IN (%s))`,
		quoteIdentifier(r.files), inList(len(ancestors)))

	args := append([]any{owner}, anySlice(ancestors)...)

	var hidden bool
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&hidden); err != nil {
		return false, fmt.Errorf("trashed ancestor of %s: %w", virtualPath, err)
	}

	return hidden, nil
}

// WithTx runs fn in a transaction. The single connection serializes it
// against every other transaction, which covers the per-owner guarantee.
func (r *treeRepo) WithTx(ctx context.Context, owner int64, fn func(ctx context.Context, tx litestore.TreeRepo) error) error {
	if r.db == nil {
		return fn(ctx, r)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(ctx, &treeRepo{q: tx, files: r.files})
	})
}

// inTx runs fn on the current transaction, or a new one outside of WithTx.
func (r *treeRepo) inTx(ctx context.Context, fn func(q dbtx) error) error {
	if r.db == nil {
		return fn(r.q)
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func expectRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, litestore.ErrNotFound)
	}
	return nil
}
