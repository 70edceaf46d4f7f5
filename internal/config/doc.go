// Package config provides configuration structures and utilities for wmsender.
// It defines the site being announced, where the webmention database lives,
// outbound HTTP settings, and report preferences, and loads them from an
// optional YAML or TOML file.
package config
