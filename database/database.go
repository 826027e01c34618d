package database

import (
	"context"
	"fmt"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/database/postgres"
	"github.com/ferrydl/ferry/database/sqlite"
)

// Config holds the configuration for connecting to a download store.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables names the downloads, events and options tables
	Tables ferry.Tables `mapstructure:"tables"`
}

// Database is a connected download store.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() ferry.DownloadRepo
	GetOptions() ferry.OptionStore
	Close() error
}

// Connect validates the table names and opens the configured backend.
// Migrations are not run; call Migrate or use Open.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// Open connects, pings, migrates when asked to and validates the schema.
// The returned Database must be closed by the caller.
func Open(ctx context.Context, cfg Config, migrate bool) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
