// Package config provides configuration management for webdev.
//
// This package handles loading, validating, and managing configuration from
// YAML or TOML files with environment variable overrides.
//
// # Configuration Loading
//
// The decoder is chosen by file extension (.yaml, .yml or .toml):
//
//	cfg, err := config.LoadConfig("webdev.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("webdev.toml")
//
// An empty path yields the defaults, which is enough for a project that
// only sets WEBDEV_BUILD_COMMAND.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention WEBDEV_SECTION_FIELD:
//
//   - WEBDEV_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - WEBDEV_BUILD_COMMAND overrides build.command
//   - WEBDEV_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// List fields take comma-separated values. A malformed duration, boolean or
// number is an error rather than being ignored.
//
// # Configuration Precedence
//
//  1. Default values (DefaultConfig)
//  2. Values from the file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Boolean switches that default to true are set by DefaultConfig before the
// file is decoded, so an explicit false in the file sticks.
//
// # Modes
//
// In production mode the upstream URL and build command are validated. In
// development mode the dev_server section is validated instead and
// UpstreamURL points at the dev server's port.
package config
