// Package database connects to a metadata backend for the file tree, share
// links and accounts.
//
// # Supported Backends
//
//   - PostgreSQL: production backend using a pgx connection pool. Tree
//     transactions take a per-user advisory lock.
//   - SQLite: single-node backend using modernc.org/sqlite on one connection.
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "litestore.db",
//	    Tables: litestore.DefaultTables(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	files, err := litestore.NewFileService(db.TreeRepo(), store, queue, litestore.ServiceConfig{})
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
