package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/database/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) litestore.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return litestore.Tables{
		Users:     "users_" + suffix,
		Files:     "files_" + suffix,
		FileLinks: "file_links_" + suffix,
	}
}

// setupTestDB opens a migrated in-memory database with unique table names.
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

// mkRoot creates the root folder of owner.
func mkRoot(t *testing.T, repo litestore.TreeRepo, owner int64) litestore.FileNode {
	t.Helper()
	root, err := repo.CreateNode(context.Background(), litestore.NewNode{
		Owner:       owner,
		VirtualPath: "/",
		ContentPath: fmt.Sprintf("users/%d/", owner),
		IsFolder:    true,
	})
	require.NoError(t, err, "create root")
	return root
}

// mkNode creates a node below parent.
func mkNode(t *testing.T, repo litestore.TreeRepo, parent litestore.FileNode, virtualPath, contentPath string) litestore.FileNode {
	t.Helper()
	n, err := repo.CreateNode(context.Background(), litestore.NewNode{
		Owner:        parent.Owner,
		VirtualPath:  virtualPath,
		ContentPath:  contentPath,
		IsFolder:     litestore.IsFolderPath(virtualPath),
		ParentFolder: &parent.ID,
	})
	require.NoError(t, err, "create %s", virtualPath)
	return n
}
