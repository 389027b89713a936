// Package config loads and validates the TOML configuration shared by the
// splice daemon and CLI. Load applies defaults, expands ~ in path fields, and
// rejects configurations the daemon could not run with.
package config
