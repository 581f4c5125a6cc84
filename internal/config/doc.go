// Package config loads, normalizes, and validates the presswatch TOML
// configuration. Defaults live in defaults.go and the embedded
// sample_config.toml; Load resolves the user config path, applies the
// file over the defaults, expands paths, and validates the result.
package config
