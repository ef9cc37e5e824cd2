package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lines-of-codes/litestore"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

// getTableMigrations returns all table migrations in dependency order
func getTableMigrations(tables litestore.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Users,
			Up:        createUsersTable(tables.Users),
			Down:      dropTable(tables.Users),
		},
		{
			TableName: tables.Files,
			Up:        createFilesTable(tables.Files),
			Down:      dropTable(tables.Files),
		},
		{
			TableName: tables.FileLinks,
			Up:        createFileLinksTable(tables.FileLinks, tables.Files),
			Down:      dropTable(tables.FileLinks),
		},
	}
}

// Migrate creates every table and index that does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables litestore.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

// DropTables drops every table in reverse dependency order.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables litestore.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createUsersTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_login TIMESTAMPTZ
			);
		`, pgIdent(tableName))

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
		return nil
	}
}

func createFilesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgIdent(tableName)
		indexParent := pgx.Identifier{fmt.Sprintf("idx_%s_parent_folder", tableName)}.Sanitize()
		indexContent := pgx.Identifier{fmt.Sprintf("idx_%s_content_path", tableName)}.Sanitize()

		// Parent checks are deferred so a subtree can be deleted in any order
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				filename TEXT NOT NULL,
				virtual_path TEXT NOT NULL,
				content_path TEXT NOT NULL,
				is_folder BOOLEAN NOT NULL DEFAULT FALSE,
				parent_folder BIGINT REFERENCES %s (id) DEFERRABLE INITIALLY DEFERRED,
				owner BIGINT NOT NULL,
				trashed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (virtual_path, owner)
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (parent_folder);

			CREATE INDEX IF NOT EXISTS %s ON %s (content_path);
		`,
			quotedTable, quotedTable,
			indexParent, quotedTable,
			indexContent, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create files table: %w", err)
		}
		return nil
	}
}

func createFileLinksTable(tableName, filesTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgIdent(tableName)
		indexCreator := pgx.Identifier{fmt.Sprintf("idx_%s_created_by", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				file_id BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				created_by BIGINT NOT NULL,
				expires_at TIMESTAMPTZ,
				password_hash TEXT,
				download_limit INTEGER CHECK (download_limit >= 1),
				download_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (created_by);
		`,
			quotedTable, pgIdent(filesTable),
			indexCreator, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create file links table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgIdent(tableName)))
		return err
	}
}
