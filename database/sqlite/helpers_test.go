package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
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

type testStore interface {
	ferry.DownloadRepo
	ferry.OptionStore
}

// setupTestRepo creates a repo with unique table names for test isolation
func setupTestRepo(t *testing.T) testStore {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	repo, ok := db.GetRepo().(testStore)
	require.True(t, ok)

	return repo
}

func strPtr(s string) *string {
	return &s
}
