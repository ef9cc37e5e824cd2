// Package config provides configuration loading and validation for litestore.
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
//  3. Environment variables (LITESTORE_ prefix)
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
// All config keys map to environment variables with LITESTORE_ prefix:
//   - server.port → LITESTORE_SERVER_PORT
//   - storage.backend → LITESTORE_STORAGE_BACKEND
//   - storage.s3.secret_access_key → LITESTORE_STORAGE_S3_SECRET_ACCESS_KEY
//   - auth.jwt_secret → LITESTORE_AUTH_JWT_SECRET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Env: dev or prod, selects the log format
//   - Server: port, request body limit and shutdown timeout
//   - Service: timeout of background purges
//   - Database: type, DSN, and table names
//   - Storage: backend (s3 or filesystem), presign timeout and expiry, backend settings
//   - Auth: JWT secret or secret file, token lifetime, bcrypt cost
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// # Validation
//
// Struct tags cover ranges and enumerations; Config.Validate checks the
// settings of the selected backend and that a JWT secret source exists.
package config
