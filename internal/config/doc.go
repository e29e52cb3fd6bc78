// Package config loads and validates the TOML configuration for lectern.
package config
