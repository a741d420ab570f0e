// Package config provides configuration structures and utilities for sitegrab.
// It defines the crawl, download, transport and report options, the YAML
// config file with per-site overrides, and the XDG directories used for the
// session database and downloads.
package config
