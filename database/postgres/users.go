package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lines-of-codes/litestore"
)

type userRepo struct {
	q     querier
	users string
}

func (r *userRepo) CreateUser(ctx context.Context, user litestore.NewUser) (litestore.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at, last_login
	`, r.users)

	var u litestore.User
	err := r.q.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLogin,
	)
	if err != nil {
		return litestore.User{}, fmt.Errorf("create user %s: %w", user.Username, mapError(err))
	}

	return u, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (litestore.User, error) {
	query := fmt.Sprintf(`
		SELECT id, username, email, password_hash, created_at, last_login
		FROM %s
		WHERE username = $1
	`, r.users)

	var u litestore.User
	err := r.q.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return litestore.User{}, fmt.Errorf("get user %s: %w", username, litestore.ErrNotFound)
		}
		return litestore.User{}, fmt.Errorf("get user %s: %w", username, err)
	}

	return u, nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET last_login = NOW() WHERE id = $1`, r.users)

	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch login %d: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("touch login %d", id))
}

func (r *userRepo) DeleteUser(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.users)

	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	return expectRow(tag, fmt.Sprintf("delete user %d", id))
}
