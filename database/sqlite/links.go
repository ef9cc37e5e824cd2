package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lines-of-codes/litestore"
)

type linkRepo struct {
	db    *sql.DB // nil inside a transaction
	q     dbtx
	links string
}

const linkColumns = `id, file_id, created_by, expires_at, password_hash, download_limit, download_count, created_at`

func scanLink(row rowScanner) (litestore.ShareLink, error) {
	var l litestore.ShareLink
	var id, createdAt string
	var expiresAt, passwordHash sql.NullString
	var limit sql.NullInt64

	err := row.Scan(&id, &l.FileID, &l.CreatedBy, &expiresAt, &passwordHash, &limit, &l.DownloadCount, &createdAt)
	if err != nil {
		return litestore.ShareLink{}, err
	}

	l.ID, err = uuid.Parse(id)
	if err != nil {
		return litestore.ShareLink{}, fmt.Errorf("parse uuid: %w", err)
	}

	l.ExpiresAt, err = parseNullTime(expiresAt)
	if err != nil {
		return litestore.ShareLink{}, fmt.Errorf("parse expires_at: %w", err)
	}

	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return litestore.ShareLink{}, fmt.Errorf("parse created_at: %w", err)
	}

	l.PasswordHash = passwordHash.String
	if limit.Valid {
		n := int(limit.Int64)
		l.DownloadLimit = &n
	}

	return l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *linkRepo) CreateLink(ctx context.Context, link litestore.NewShareLink) (litestore.ShareLink, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, file_id, created_by, expires_at, password_hash, download_limit, download_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		RETURNING %s`, quoteIdentifier(r.links), linkColumns)

	l, err := scanLink(r.q.QueryRowContext(ctx, query,
		link.ID.String(), link.FileID, link.CreatedBy, formatNullTime(link.ExpiresAt),
		nullString(link.PasswordHash), link.DownloadLimit, now(),
	))
	if err != nil {
		return litestore.ShareLink{}, fmt.Errorf("create link: %w", mapError(err))
	}

	return l, nil
}

func (r *linkRepo) GetLink(ctx context.Context, id uuid.UUID) (litestore.ShareLink, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, linkColumns, quoteIdentifier(r.links))

	l, err := scanLink(r.q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return litestore.ShareLink{}, fmt.Errorf("get link %s: %w", id, litestore.ErrNotFound)
		}
		return litestore.ShareLink{}, fmt.Errorf("get link %s: %w", id, err)
	}

	return l, nil
}

func (r *linkRepo) ListLinks(ctx context.Context, createdBy int64) ([]litestore.ShareLink, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE created_by = ? ORDER BY created_at DESC, id`, linkColumns, quoteIdentifier(r.links))

	rows, err := r.q.QueryContext(ctx, query, createdBy)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	var sets []string
	var args []any

	switch {
	case update.ClearExpiry:
		sets = append(sets, "expires_at = NULL")
	case update.ExpiresAt != nil:
		sets = append(sets, "expires_at = ?")
		args = append(args, formatNullTime(update.ExpiresAt))
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, nullString(*update.PasswordHash))
	}
	switch {
	case update.ClearDownloadLimit:
		sets = append(sets, "download_limit = NULL")
	case update.DownloadLimit != nil:
		sets = append(sets, "download_limit = ?")
		args = append(args, *update.DownloadLimit)
	}

	if len(sets) == 0 {
		_, err := r.GetLink(ctx, id)
		return err
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET %s WHERE id = ?`, quoteIdentifier(r.links), strings.Join(sets, ", "))

	result, err := r.q.ExecContext(ctx, query, append(args, id.String())...)
	if err != nil {
		return fmt.Errorf("update link %s: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("update link %s", id))
}

func (r *linkRepo) SetDownloadCount(ctx context.Context, id uuid.UUID, count int) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET download_count = ? WHERE id = ?`, quoteIdentifier(r.links))

	result, err := r.q.ExecContext(ctx, query, count, id.String())
	if err != nil {
		return fmt.Errorf("set download count %s: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("set download count %s", id))
}

func (r *linkRepo) DeleteLink(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.links))

	result, err := r.q.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("delete link %s: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("delete link %s", id))
}

func (r *linkRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx litestore.LinkRepo) error) error {
	if r.db == nil {
		return fn(ctx, r)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(ctx, &linkRepo{q: tx, links: r.links})
	})
}
