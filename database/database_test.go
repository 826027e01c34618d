package database_test

import (
	"context"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func testTables(prefix string) ferry.Tables {
	return ferry.Tables{
		Downloads: prefix + "_downloads",
		Events:    prefix + "_events",
		Options:   prefix + "_options",
	}
}

func newTestConfig(prefix string) database.Config {
	return database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: testTables(prefix),
	}
}

func setupTestDB(t *testing.T, prefix string) database.Database {
	t.Helper()

	db, err := database.Connect(context.Background(), newTestConfig(prefix))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// Tests for Connect routing logic

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t, "connect")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestConnect_InvalidType(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"invalid", ""} {
		cfg := database.Config{Type: typ, DSN: "whatever", Tables: testTables("x")}

		_, err := database.Connect(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database type")
	}
}

func TestConnect_InvalidTables(t *testing.T) {
	t.Parallel()

	cfg := database.Config{Type: "sqlite", DSN: ":memory:", Tables: ferry.Tables{Downloads: "Bad-Name"}}

	_, err := database.Connect(context.Background(), cfg)
	assert.Error(t, err)
}

// Tests for Database interface methods

func TestDatabase_Migrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "migrate")

	assert.Error(t, db.Validate(ctx), "validate should fail without tables")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate should be idempotent")
	assert.NoError(t, db.Validate(ctx), "validate should pass after migration")

	_, err := db.GetRepo().List(ctx, ferry.ListQuery{Limit: 1})
	assert.NoError(t, err)
}

func TestDatabase_RepoAndOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "repo")
	require.NoError(t, db.Migrate(ctx))

	d, inserted, err := db.GetRepo().Upsert(ctx, ferry.Download{Name: "file.zip", FileURL: "/srv/file.zip"})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "file.zip", d.Name)

	require.NoError(t, db.GetOptions().SetOption(ctx, "xsendfile_missing", "1"))
	v, err := db.GetOptions().GetOption(ctx, "xsendfile_missing")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.Open(ctx, newTestConfig("open"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Open(ctx, newTestConfig("open_nomigrate"), false)
	assert.Error(t, err, "schema validation should fail on an empty database")
}

func TestDatabase_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.Connect(ctx, newTestConfig("close"))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(ctx), "ping should fail after close")
}

// Postgres-specific tests are in the database/postgres package.
