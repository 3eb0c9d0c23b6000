// Package config loads, normalizes and validates the daemon's TOML
// configuration.
//
// Load layers the file over Default, expands paths, fills omitted values and
// runs Validate. Every validation failure wraps ErrInvalid so callers can
// refuse to start before any fan is touched. CreateSample writes an annotated
// starting point for new installs.
package config
