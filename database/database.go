package database

import (
	"context"
	"fmt"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/database/postgres"
	"github.com/lines-of-codes/litestore/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables holds the table names
	Tables litestore.Tables `mapstructure:"tables"`
}

// Database is a connected metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	// Migrate creates missing tables and indexes.
	Migrate(ctx context.Context) error
	// Validate checks that existing tables have the expected columns.
	Validate(ctx context.Context) error
	TreeRepo() litestore.TreeRepo
	LinkRepo() litestore.LinkRepo
	UserRepo() litestore.UserRepo
	Close() error
}

// Connect validates the table names and connects to the configured backend.
// It does not migrate; call Migrate or Validate on the result.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
