package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ferrydl/ferry"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the app
func getTableMigrations(tables ferry.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Downloads,
			Up:        createDownloadsTable(tables.Downloads),
			Down:      dropTable(tables.Downloads),
		},
		{
			TableName: tables.Events,
			Up:        createEventsTable(tables.Events),
			Down:      dropTable(tables.Events),
		},
		{
			TableName: tables.Options,
			Up:        createOptionsTable(tables.Options),
			Down:      dropTable(tables.Options),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables ferry.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables ferry.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createDownloadsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexCategory := quoteIdentifier(fmt.Sprintf("idx_%s_category", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				file_url TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				password TEXT NOT NULL DEFAULT '',
				rules TEXT NOT NULL DEFAULT '{}',
				download_count INTEGER NOT NULL DEFAULT 0,
				menu_order INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (category, id)
		`, indexCategory, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index category: %w", err)
		}

		return nil
	}
}

func createEventsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexDownload := quoteIdentifier(fmt.Sprintf("idx_%s_download", tableName))
		indexCreatedAt := quoteIdentifier(fmt.Sprintf("idx_%s_created_at", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
				download_id INTEGER NOT NULL,
				user_id TEXT,
				ip_address TEXT,
				created_at TEXT NOT NULL
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (download_id, id)
		`, indexDownload, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index download: %w", err)
		}

		indexSQL = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (created_at)
		`, indexCreatedAt, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index created_at: %w", err)
		}

		return nil
	}
}

func createOptionsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT NOT NULL PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
