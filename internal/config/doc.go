// Package config loads and validates nixgen's TOML configuration.
//
// Configuration resolves from an explicit --config path or the default
// ~/.config/nixgen/config.toml, over built-in defaults. Paths are
// tilde-expanded during normalization; validation rejects unusable values
// before any command runs.
package config
