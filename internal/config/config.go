// ABOUTME: Configuration loading and parsing for hive-render
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/hive-render/internal/embed"
	"github.com/2389/hive-render/internal/markdown"
	"github.com/2389/hive-render/internal/mention"
	"github.com/2389/hive-render/internal/pipeline"
	"github.com/2389/hive-render/internal/sanitize"
)

// Registry kinds
const (
	RegistryHive   = "hive"   // Hive JSON-RPC node
	RegistrySQLite = "sqlite" // local account mirror only
	RegistryMirror = "mirror" // local mirror first, then the Hive node
	RegistryStatic = "static" // fixed list from registry.accounts
)

// Config represents the complete hive-render configuration
type Config struct {
	Renderer RendererConfig `yaml:"renderer" toml:"renderer"`
	Caches   CachesConfig   `yaml:"caches" toml:"caches"`
	Mentions MentionsConfig `yaml:"mentions" toml:"mentions"`
	Embeds   EmbedsConfig   `yaml:"embeds" toml:"embeds"`
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`

	// DevMode clears every cache on each render. Development only.
	DevMode bool `yaml:"dev_mode" toml:"dev_mode"`
}

// RendererConfig holds markdown rendering settings
type RendererConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	IPFSGateway string `yaml:"ipfs_gateway" toml:"ipfs_gateway"`
	HardBreaks  bool   `yaml:"hard_breaks" toml:"hard_breaks"`

	// Route templates; {handle} and {tag} are substituted
	UserRoute    string `yaml:"user_route" toml:"user_route"`
	HashtagRoute string `yaml:"hashtag_route" toml:"hashtag_route"`
	// AvatarURL is a template with {handle}; empty disables avatars
	AvatarURL string `yaml:"avatar_url" toml:"avatar_url"`
}

// CachesConfig holds the three pipeline caches
type CachesConfig struct {
	Output       CacheConfig `yaml:"output" toml:"output"`
	Intermediate CacheConfig `yaml:"intermediate" toml:"intermediate"`
	Mentions     CacheConfig `yaml:"mentions" toml:"mentions"`
}

// CacheConfig bounds a single cache
type CacheConfig struct {
	Capacity int           `yaml:"capacity" toml:"capacity"`
	TTL      time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// MentionsConfig holds mention validation settings
type MentionsConfig struct {
	MinLength   int `yaml:"min_length" toml:"min_length"`
	MaxLength   int `yaml:"max_length" toml:"max_length"`
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
}

// EmbedsConfig holds embed detection and trust settings
type EmbedsConfig struct {
	TrustedSources      []string `yaml:"trusted_sources" toml:"trusted_sources"`
	TrustedVideoSources []string `yaml:"trusted_video_sources" toml:"trusted_video_sources"`
	MediaHosts          []string `yaml:"media_hosts" toml:"media_hosts"`
}

// RegistryConfig selects and configures the identity registry
type RegistryConfig struct {
	Kind     string        `yaml:"kind" toml:"kind"`
	URL      string        `yaml:"url" toml:"url"`
	Timeout  time.Duration `yaml:"-" toml:"-"`
	Database string        `yaml:"database" toml:"database"`
	Accounts []string      `yaml:"accounts" toml:"accounts"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			BaseURL:      "https://hive.blog/",
			IPFSGateway:  "https://ipfs.io/ipfs/",
			HardBreaks:   true,
			UserRoute:    "/@{handle}",
			HashtagRoute: "/trending/{tag}",
			AvatarURL:    "https://images.hive.blog/u/{handle}/avatar/small",
		},
		Caches: CachesConfig{
			Output:       CacheConfig{Capacity: 256, TTL: 30 * time.Minute, TTLRaw: "30m"},
			Intermediate: CacheConfig{Capacity: 256, TTL: 30 * time.Minute, TTLRaw: "30m"},
			Mentions:     CacheConfig{Capacity: 4096, TTL: time.Hour, TTLRaw: "1h"},
		},
		Mentions: MentionsConfig{
			MinLength:   mention.DefaultMinLength,
			MaxLength:   mention.DefaultMaxLength,
			Concurrency: mention.DefaultConcurrency,
		},
		Embeds: EmbedsConfig{
			TrustedSources:      append([]string(nil), embed.DefaultTrustedSources...),
			TrustedVideoSources: append([]string(nil), embed.DefaultTrustedVideoSources...),
			MediaHosts:          append([]string(nil), embed.DefaultMediaHosts...),
		},
		Registry: RegistryConfig{
			Kind:       RegistryHive,
			URL:        "https://api.hive.blog",
			Timeout:    5 * time.Second,
			TimeoutRaw: "5s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Keys missing from the file keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns Default if the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Renderer.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("renderer.base_url must be an absolute URL")
	}

	caches := []struct {
		name string
		c    CacheConfig
	}{
		{"output", c.Caches.Output},
		{"intermediate", c.Caches.Intermediate},
		{"mentions", c.Caches.Mentions},
	}
	for _, cc := range caches {
		if cc.c.Capacity <= 0 {
			return fmt.Errorf("caches.%s.capacity must be positive", cc.name)
		}
		if cc.c.TTL < 0 {
			return fmt.Errorf("caches.%s.ttl must not be negative", cc.name)
		}
	}

	if c.Mentions.MinLength < 1 {
		return fmt.Errorf("mentions.min_length must be at least 1")
	}
	if c.Mentions.MaxLength < c.Mentions.MinLength {
		return fmt.Errorf("mentions.max_length must not be less than mentions.min_length")
	}
	if c.Mentions.Concurrency < 1 {
		return fmt.Errorf("mentions.concurrency must be at least 1")
	}

	for _, p := range append(append([]string(nil), c.Embeds.TrustedSources...), c.Embeds.TrustedVideoSources...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("embeds: invalid trusted source %q: %w", p, err)
		}
	}

	switch c.Registry.Kind {
	case RegistryHive:
		if c.Registry.URL == "" {
			return fmt.Errorf("registry.url is required for the hive registry")
		}
	case RegistrySQLite:
		if c.Registry.Database == "" {
			return fmt.Errorf("registry.database is required for the sqlite registry")
		}
	case RegistryMirror:
		if c.Registry.URL == "" || c.Registry.Database == "" {
			return fmt.Errorf("registry.url and registry.database are required for the mirror registry")
		}
	case RegistryStatic:
	default:
		return fmt.Errorf("registry.kind %q is not one of hive, sqlite, mirror, static", c.Registry.Kind)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	caches := []struct {
		name string
		c    *CacheConfig
	}{
		{"output", &cfg.Caches.Output},
		{"intermediate", &cfg.Caches.Intermediate},
		{"mentions", &cfg.Caches.Mentions},
	}
	for _, cc := range caches {
		if cc.c.TTLRaw == "" {
			continue
		}
		cc.c.TTL, err = time.ParseDuration(cc.c.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing caches.%s.ttl %q: %w", cc.name, cc.c.TTLRaw, err)
		}
	}

	if cfg.Registry.TimeoutRaw != "" {
		cfg.Registry.Timeout, err = time.ParseDuration(cfg.Registry.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing registry.timeout %q: %w", cfg.Registry.TimeoutRaw, err)
		}
	}

	return nil
}

// Pipeline converts the file configuration into pipeline settings.
func (c *Config) Pipeline() pipeline.Config {
	opts := markdown.DefaultOptions()
	opts.BaseURL = c.Renderer.BaseURL
	opts.IPFSGateway = c.Renderer.IPFSGateway
	opts.Breaks = c.Renderer.HardBreaks
	if c.Renderer.UserRoute != "" {
		opts.Routes.User = template(c.Renderer.UserRoute, "{handle}")
	}
	if c.Renderer.HashtagRoute != "" {
		opts.Routes.Hashtag = template(c.Renderer.HashtagRoute, "{tag}")
	}

	var avatar func(string) string
	if c.Renderer.AvatarURL != "" {
		avatar = template(c.Renderer.AvatarURL, "{handle}")
	}

	return pipeline.Config{
		Output:       pipeline.CacheConfig{Capacity: c.Caches.Output.Capacity, TTL: c.Caches.Output.TTL},
		Intermediate: pipeline.CacheConfig{Capacity: c.Caches.Intermediate.Capacity, TTL: c.Caches.Intermediate.TTL},
		Mentions:     pipeline.CacheConfig{Capacity: c.Caches.Mentions.Capacity, TTL: c.Caches.Mentions.TTL},
		Renderer:     opts,
		Trusted: sanitize.Config{
			IframeSources: c.Embeds.TrustedSources,
			VideoSources:  c.Embeds.TrustedVideoSources,
		},
		MediaHosts:         c.Embeds.MediaHosts,
		MinHandleLength:    c.Mentions.MinLength,
		MaxHandleLength:    c.Mentions.MaxLength,
		MentionConcurrency: c.Mentions.Concurrency,
		AvatarURL:          avatar,
		DevMode:            c.DevMode,
	}
}

// template returns a function substituting its argument for placeholder.
func template(pattern, placeholder string) func(string) string {
	return func(v string) string {
		return strings.ReplaceAll(pattern, placeholder, v)
	}
}

// Marshal renders the configuration as YAML, for writing a starter file.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}
