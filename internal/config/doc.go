// Package config loads partcopy configuration from defaults, an optional YAML
// file, PARTCOPY_* environment variables and command-line flags, in increasing
// order of precedence, and validates the result.
package config
