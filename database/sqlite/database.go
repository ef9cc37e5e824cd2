// Package sqlite implements the litestore repositories on SQLite.
//
// SQLite allows one writer at a time, so DB holds a single connection and
// every transaction is serialized against all others.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lines-of-codes/litestore"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB provides SQLite database operations.
type DB struct {
	db     *sql.DB
	tables litestore.Tables
}

// Connect opens a SQLite database. ":memory:" gives a private in-memory database.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables litestore.Tables) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// An in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: enable foreign keys: %w", err)
	}

	return &DB{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *DB) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// TreeRepo returns the file tree repository.
func (d *DB) TreeRepo() litestore.TreeRepo {
	return &treeRepo{db: d.db, q: d.db, files: d.tables.Files}
}

// LinkRepo returns the share link repository.
func (d *DB) LinkRepo() litestore.LinkRepo {
	return &linkRepo{db: d.db, q: d.db, links: d.tables.FileLinks}
}

// UserRepo returns the account repository.
func (d *DB) UserRepo() litestore.UserRepo {
	return &userRepo{q: d.db, users: d.tables.Users}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
