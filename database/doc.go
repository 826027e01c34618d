// Package database provides a unified interface for connecting to download stores.
//
// The package supports two backends (PostgreSQL and SQLite) and handles
// connection management, migrations, and schema validation.
//
// # Supported Backends
//
//   - PostgreSQL: production backend using a pgx connection pool
//   - SQLite: lightweight backend suitable for development and single-node deployments
//
// # Tables
//
// Three tables are managed, their names configurable through ferry.Tables:
//
//   - downloads: one row per download, keyed by a numeric ID with a unique name
//   - events: append-only log of completed downloads
//   - options: small key/value flags such as the accelerated transfer marker
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "ferry.db",
//	    Tables: ferry.Tables{Downloads: "ferry_downloads", Events: "ferry_download_events", Options: "ferry_options"},
//	}
//
//	db, err := database.Open(ctx, cfg, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	repo := db.GetRepo()
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
