// Package config loads, validates, and normalizes the TOML configuration that
// drives the menuvision daemon, pipeline, and CLI.
package config
