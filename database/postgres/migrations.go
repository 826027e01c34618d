package postgres

import (
	"context"
	"fmt"

	"github.com/ferrydl/ferry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

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

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables ferry.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables ferry.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createDownloadsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexCategory := pgx.Identifier{fmt.Sprintf("idx_%s_category", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				file_url TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				password TEXT NOT NULL DEFAULT '',
				rules JSONB NOT NULL DEFAULT '{}',
				download_count BIGINT NOT NULL DEFAULT 0,
				menu_order BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (category, id);
		`,
			quotedTable,
			indexCategory, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create downloads table: %w", err)
		}
		return nil
	}
}

func createEventsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexDownload := pgx.Identifier{fmt.Sprintf("idx_%s_download", tableName)}.Sanitize()
		indexCreatedAt := pgx.Identifier{fmt.Sprintf("idx_%s_created_at", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
				download_id BIGINT NOT NULL,
				user_id TEXT,
				ip_address TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (download_id, id DESC);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (created_at);
		`,
			quotedTable,
			indexDownload, quotedTable,
			indexCreatedAt, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create events table: %w", err)
		}
		return nil
	}
}

func createOptionsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`, pgx.Identifier{tableName}.Sanitize())

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create options table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
