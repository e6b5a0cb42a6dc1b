// Package config handles configuration loading for hive-render.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. The format is chosen by extension: .toml is TOML, anything else
// is YAML. Keys absent from the file keep the values from Default, so an
// empty file is a valid configuration.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HIVE_RENDER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/hive-render/config.yaml
//  3. ~/.config/hive-render/config.yaml
//
// When no file exists the CLI runs with Default.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	registry:
//	  url: "${HIVE_NODE_URL}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	caches:
//	  output:
//	    ttl: "30m"
//	registry:
//	  timeout: "5s"
//
// A cache ttl of "0s" disables expiry for that cache.
//
// # Configuration Sections
//
// Rendering:
//
//	renderer:
//	  base_url: "https://hive.blog/"
//	  ipfs_gateway: "https://ipfs.io/ipfs/"
//	  hard_breaks: true
//	  user_route: "/@{handle}"
//	  hashtag_route: "/trending/{tag}"
//	  avatar_url: "https://images.hive.blog/u/{handle}/avatar/small"  # empty disables
//
// Caches:
//
//	caches:
//	  output:       { capacity: 256,  ttl: "30m" }
//	  intermediate: { capacity: 256,  ttl: "30m" }
//	  mentions:     { capacity: 4096, ttl: "1h" }
//
// Mentions:
//
//	mentions:
//	  min_length: 3
//	  max_length: 16
//	  concurrency: 8
//
// Embeds:
//
//	embeds:
//	  trusted_sources: [...]        # iframe src patterns
//	  trusted_video_sources: [...]  # <video> src patterns
//	  media_hosts: [...]            # image hosts shown inline
//
// Registry:
//
//	registry:
//	  kind: "hive"                  # hive, sqlite, mirror, static
//	  url: "https://api.hive.blog"
//	  timeout: "5s"
//	  database: "accounts.db"       # sqlite and mirror
//	  accounts: ["alice"]           # static
//
// Logging:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//
// Development:
//
//	dev_mode: false    # clears every cache on each render
//
// # Validation
//
// Load validates the result: the base URL must be absolute, cache capacities
// positive, handle lengths consistent, trusted patterns valid regular
// expressions, and the registry section complete for its kind.
package config
