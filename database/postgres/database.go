// Package postgres implements the litestore repositories on PostgreSQL
// using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lines-of-codes/litestore"
)

// DB provides PostgreSQL database operations.
type DB struct {
	pool   *pgxpool.Pool
	tables litestore.Tables
}

// Connect establishes a connection to PostgreSQL.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables litestore.Tables) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &DB{
		pool:   pool,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *DB) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.pool, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.tables)
}

// TreeRepo returns the file tree repository.
func (d *DB) TreeRepo() litestore.TreeRepo {
	return &treeRepo{pool: d.pool, q: d.pool, files: pgIdent(d.tables.Files)}
}

// LinkRepo returns the share link repository.
func (d *DB) LinkRepo() litestore.LinkRepo {
	return &linkRepo{pool: d.pool, q: d.pool, links: pgIdent(d.tables.FileLinks)}
}

// UserRepo returns the account repository.
func (d *DB) UserRepo() litestore.UserRepo {
	return &userRepo{q: d.pool, users: pgIdent(d.tables.Users)}
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}
