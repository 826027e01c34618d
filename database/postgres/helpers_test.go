package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/database/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
)

// getSharedTestDatabase returns a pool on a postgres container shared by
// every test in the package.
func getSharedTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres tests in short mode")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			t.Fatalf("failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			t.Fatalf("could not connect to database: %v", err)
		}

		testPool = pool
	})

	if testPool == nil {
		t.Fatal("shared postgres database unavailable")
	}

	return testPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) ferry.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return ferry.Tables{
		Downloads: "downloads_" + suffix,
		Events:    "events_" + suffix,
		Options:   "options_" + suffix,
	}
}

// getDSN extracts the DSN from the pool config.
func getDSN(pool *pgxpool.Pool) string {
	return pool.Config().ConnString()
}

// setupTestRepo migrates a fresh set of tables and drops them when the test ends.
func setupTestRepo(t *testing.T) *postgres.Repo {
	t.Helper()

	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := randomTables(t)

	require.NoError(t, postgres.Migrate(ctx, pool, tables), "failed to migrate")
	t.Cleanup(func() { _ = postgres.DropTables(context.Background(), pool, tables) })

	repo, err := postgres.NewRepo(pool, tables)
	require.NoError(t, err)

	return repo
}

func strPtr(s string) *string {
	return &s
}
