// Package config provides configuration structures and utilities for FerrumWeb.
//
// Configuration is layered: NewConfig defaults, then FERRUMWEB_* environment
// variables (optionally loaded from a .env file), then CLI flags. Per-host
// request settings (cookies, headers, depth, User-Agent) come from an
// optional YAML or TOML file found by FindConfigFile.
package config
