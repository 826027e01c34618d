package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ferrydl/ferry"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables ferry.Tables
}

// Connect establishes a connection to SQLite.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables ferry.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// every connection to ":memory:" is a separate database
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the DownloadRepo for database operations.
func (d *database) GetRepo() ferry.DownloadRepo {
	return d.repo()
}

// GetOptions returns the OptionStore backed by the options table.
func (d *database) GetOptions() ferry.OptionStore {
	return d.repo()
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}

func (d *database) repo() *Repo {
	return &Repo{
		db:        d.db,
		downloads: quoteIdentifier(d.tables.Downloads),
		events:    quoteIdentifier(d.tables.Events),
		options:   quoteIdentifier(d.tables.Options),
	}
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
