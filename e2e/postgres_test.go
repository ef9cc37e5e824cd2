package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testPoolErr  error
	testCleanup  func()
	testDSN      string
)

// getSharedPostgresDatabase starts one PostgreSQL container for the whole
// run and returns its DSN. TestMain terminates it. The pool lets tests
// inspect what the server wrote.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	testPoolOnce.Do(func() {
		ctx := context.Background()

		container, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("litestore_e2e"),
			pgcontainer.WithUsername("litestore"),
			pgcontainer.WithPassword("litestore-e2e"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testPoolErr = err
			return
		}

		testCleanup = func() {
			if testPool != nil {
				testPool.Close()
			}
			_ = testcontainers.TerminateContainer(container)
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			testPoolErr = err
			return
		}

		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			testPoolErr = err
			return
		}

		testPool = pool
		testDSN = dsn
	})

	if testPoolErr != nil {
		t.Fatalf("postgres container: %v", testPoolErr)
	}

	return testDSN
}
