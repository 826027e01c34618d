// Package config provides configuration loading and validation for ferry.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (FERRY_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with FERRY_ prefix:
//   - server.port → FERRY_SERVER_PORT
//   - delivery.method → FERRY_DELIVERY_METHOD
//   - database.dsn → FERRY_DATABASE_DSN
//
// # Configuration Structure
//
//   - Server: port, public_url and timeouts
//   - Delivery: method (force/xsendfile/redirect) and fallback policy
//   - Content: upload dir and URL, site URLs and roots for locator mapping
//   - Database: type, DSN, and table names
//   - Auth: static bearer tokens and JWT settings
//   - S3: bucket, credentials, presign TTL and sync concurrency
//   - Telemetry: Prometheus endpoint
//   - Events: retention used by prune
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
package config
