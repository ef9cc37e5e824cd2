package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lines-of-codes/litestore"
)

type userRepo struct {
	q     dbtx
	users string
}

func (r *userRepo) CreateUser(ctx context.Context, user litestore.NewUser) (litestore.User, error) {
	ts := now()
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (username, email, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		quoteIdentifier(r.users))

	u := litestore.User{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
	}

	if err := r.q.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash, ts).Scan(&u.ID); err != nil {
		return litestore.User{}, fmt.Errorf("create user %s: %w", user.Username, mapError(err))
	}

	u.CreatedAt, _ = parseTime(ts)
	return u, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (litestore.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, username, email, password_hash, created_at, last_login FROM %s WHERE username = ?`,
		quoteIdentifier(r.users))

	var u litestore.User
	var createdAt string
	var lastLogin sql.NullString

	err := r.q.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return litestore.User{}, fmt.Errorf("get user %s: %w", username, litestore.ErrNotFound)
		}
		return litestore.User{}, fmt.Errorf("get user %s: %w", username, err)
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return litestore.User{}, fmt.Errorf("get user %s: parse created_at: %w", username, err)
	}
	u.LastLogin, err = parseNullTime(lastLogin)
	if err != nil {
		return litestore.User{}, fmt.Errorf("get user %s: parse last_login: %w", username, err)
	}

	return u, nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id int64) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET last_login = ? WHERE id = ?`, quoteIdentifier(r.users))

	result, err := r.q.ExecContext(ctx, query, now(), id)
	if err != nil {
		return fmt.Errorf("touch login %d: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("touch login %d", id))
}

func (r *userRepo) DeleteUser(ctx context.Context, id int64) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.users))

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	return expectRow(result, fmt.Sprintf("delete user %d", id))
}
