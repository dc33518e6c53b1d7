// Package config loads, validates, and defaults the TOML configuration file
// shared by the derush CLI and daemon.
package config
