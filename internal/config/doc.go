// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/depcache/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/depcache/config.cue on macOS, %APPDATA%\depcache\config.cue
// on Windows), falling back to a project-local depcache.cue in the working directory. The
// package provides type-safe configuration access and covers the cache location, discovery
// pattern and search directories, the Python interpreter, the resolver command, concurrency,
// hooks, and UI settings.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
