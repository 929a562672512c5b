// Package config loads, normalizes, and validates the TOML configuration
// shared by the daemon and CLI.
//
// Load resolves the config path (explicit flag, ~/.config/argus/config.toml,
// or ./argus.toml), layers the file over Default(), expands ~ in path fields,
// and validates every section so the rest of the codebase can assume sane
// values. CreateSample writes the embedded annotated sample for `argus config
// init`.
package config
