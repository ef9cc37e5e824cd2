package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lines-of-codes/litestore"
)

type linkRepo struct {
	pool  *pgxpool.Pool // nil inside a transaction
	q     querier
	links string
}

const linkColumns = `id, file_id, created_by, expires_at, COALESCE(password_hash, ''), download_limit, download_count, created_at`

func scanLink(row pgx.Row) (litestore.ShareLink, error) {
	var l litestore.ShareLink
	err := row.Scan(&l.ID, &l.FileID, &l.CreatedBy, &l.ExpiresAt, &l.PasswordHash, &l.DownloadLimit, &l.DownloadCount, &l.CreatedAt)
	return l, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *linkRepo) CreateLink(ctx context.Context, link litestore.NewShareLink) (litestore.ShareLink, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, file_id, created_by, expires_at, password_hash, download_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, r.links, linkColumns)

	l, err := scanLink(r.q.QueryRow(ctx, query,
		link.ID, link.FileID, link.CreatedBy, link.ExpiresAt, nullIfEmpty(link.PasswordHash), link.DownloadLimit,
	))
	if err != nil {
		return litestore.ShareLink{}, fmt.Errorf("create link: %w", mapError(err))
	}

	return l, nil
}

// GetLink locks the row when called inside WithTx.
func (r *linkRepo) GetLink(ctx context.Context, id uuid.UUID) (litestore.ShareLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, linkColumns, r.links)
	if r.pool == nil {
		query += " FOR UPDATE"
	}

	l, err := scanLink(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return litestore.ShareLink{}, fmt.Errorf("get link %s: %w", id, litestore.ErrNotFound)
		}
		return litestore.ShareLink{}, fmt.Errorf("get link %s: %w", id, err)
	}

	return l, nil
}

func (r *linkRepo) ListLinks(ctx context.Context, createdBy int64) ([]litestore.ShareLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE created_by = $1 ORDER BY created_at DESC, id`, linkColumns, r.links)

	rows, err := r.q.Query(ctx, query, createdBy)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	links := []litestore.ShareLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("list links: scan: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list links: rows: %w", err)
	}

	return links, nil
}

func (r *linkRepo) UpdateLink(ctx context.Context, id uuid.UUID, update litestore.LinkUpdate) error {
	sets := []string{}
	args := []any{id}

	switch {
	case update.ClearExpiry:
		sets = append(sets, "expires_at = NULL")
	case update.ExpiresAt != nil:
		args = append(args, *update.ExpiresAt)
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}
	if update.PasswordHash != nil {
		args = append(args, nullIfEmpty(*update.PasswordHash))
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	switch {
	case update.ClearDownloadLimit:
		sets = append(sets, "download_limit = NULL")
	case update.DownloadLimit != nil:
		args = append(args, *update.DownloadLimit)
		sets = append(sets, fmt.Sprintf("download_limit = $%d", len(args)))
	}

	if len(sets) == 0 {
		_, err := r.GetLink(ctx, id)
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, r.links, strings.Join(sets, ", "))

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update link %s: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("update link %s", id))
}

func (r *linkRepo) SetDownloadCount(ctx context.Context, id uuid.UUID, count int) error {
	query := fmt.Sprintf(`UPDATE %s SET download_count = $1 WHERE id = $2`, r.links)

	tag, err := r.q.Exec(ctx, query, count, id)
	if err != nil {
		return fmt.Errorf("set download count %s: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("set download count %s", id))
}

func (r *linkRepo) DeleteLink(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.links)

	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete link %s: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("delete link %s", id))
}

func (r *linkRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx litestore.LinkRepo) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &linkRepo{q: tx, links: r.links})
	})
}
