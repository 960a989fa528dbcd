// Package config provides configuration management for identigraph.
//
// Configuration is read from a YAML file, then overridden by IDENTIGRAPH_*
// environment variables. The resulting Config is built once at startup and
// passed explicitly to every component.
//
// Config file locations (priority order):
//  1. $IDENTIGRAPH_CONFIG
//  2. ./identigraph.yaml
//  3. ~/.config/identigraph/config.yaml
//  4. /etc/identigraph/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or starts from defaults if none is
// found. Environment overrides are applied in both cases.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.applyEnv(); err != nil {
			return nil, "", err
		}
		cfg.applyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. Keys missing from the file
// keep their default values.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, path, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	upstreamTimeout := Duration(5 * time.Second)
	enabled := func() UpstreamConfig {
		return UpstreamConfig{Enabled: true, Timeout: upstreamTimeout}
	}

	return &Config{
		Version:  1,
		Database: DatabaseConfig{Path: "./identigraph.db"},
		Log:      LogConfig{Level: "info", Encoding: "json"},
		Crawl: CrawlConfig{
			MaxRounds:   8,
			MaxVisited:  500,
			Concurrency: 8,
			Timeout:     Duration(2 * time.Minute),
		},
		Upstreams: UpstreamsConfig{
			NextID:       enabled(),
			SybilList:    enabled(),
			ENSReverse:   enabled(),
			TheGraph:     enabled(),
			SpaceID:      enabled(),
			DotBit:       UpstreamConfig{Enabled: false, Timeout: upstreamTimeout},
			RSS3:         UpstreamConfig{Enabled: false, Timeout: upstreamTimeout},
			SybilListTTL: Duration(30 * time.Minute),
		},
		Refresh: RefreshConfig{Schedule: "@every 6h"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9464"},
	}
}

// applyEnv overrides fields from IDENTIGRAPH_* environment variables
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// applyDefaults fills in zero values left by the file
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = def.Log.Encoding
	}
	if c.Crawl.MaxRounds <= 0 {
		c.Crawl.MaxRounds = def.Crawl.MaxRounds
	}
	if c.Crawl.MaxVisited <= 0 {
		c.Crawl.MaxVisited = def.Crawl.MaxVisited
	}
	if c.Crawl.Concurrency <= 0 {
		c.Crawl.Concurrency = def.Crawl.Concurrency
	}
	if c.Crawl.Timeout <= 0 {
		c.Crawl.Timeout = def.Crawl.Timeout
	}
	for _, u := range c.Upstreams.all() {
		if u.Timeout <= 0 {
			u.Timeout = def.Upstreams.NextID.Timeout
		}
	}
	if c.Upstreams.SybilListTTL <= 0 {
		c.Upstreams.SybilListTTL = def.Upstreams.SybilListTTL
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = def.Refresh.Schedule
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Encoding) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding %q must be json or console", c.Log.Encoding))
	}
	for name, u := range c.Upstreams.named() {
		if u.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("upstreams.%s.rate_limit must not be negative", name))
		}
	}
	if c.Refresh.Enabled && len(c.Refresh.Seeds) == 0 {
		errs = append(errs, errors.New("refresh.enabled requires at least one seed"))
	}

	return errors.Join(errs...)
}

// EnabledUpstreams returns the names of enabled upstream sources
func (c *Config) EnabledUpstreams() []string {
	var names []string
	for _, name := range upstreamOrder {
		if c.Upstreams.named()[name].Enabled {
			names = append(names, name)
		}
	}
	return names
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Database: %s, Log: %s/%s\n", c.Database.Path, c.Log.Level, c.Log.Encoding)
	summary += fmt.Sprintf("Crawl: max_rounds=%d max_visited=%d concurrency=%d timeout=%s\n",
		c.Crawl.MaxRounds, c.Crawl.MaxVisited, c.Crawl.Concurrency, c.Crawl.Timeout.Duration())
	summary += fmt.Sprintf("Enabled upstreams (%d): %s", len(c.EnabledUpstreams()), strings.Join(c.EnabledUpstreams(), " "))
	return summary
}

var upstreamOrder = []string{"nextid", "sybil_list", "ens_reverse", "the_graph", "space_id", "dotbit", "rss3"}

func (u *UpstreamsConfig) named() map[string]*UpstreamConfig {
	return map[string]*UpstreamConfig{
		"nextid":      &u.NextID,
		"sybil_list":  &u.SybilList,
		"ens_reverse": &u.ENSReverse,
		"the_graph":   &u.TheGraph,
		"space_id":    &u.SpaceID,
		"dotbit":      &u.DotBit,
		"rss3":        &u.RSS3,
	}
}

func (u *UpstreamsConfig) all() []*UpstreamConfig {
	named := u.named()
	out := make([]*UpstreamConfig, 0, len(upstreamOrder))
	for _, name := range upstreamOrder {
		out = append(out, named[name])
	}
	return out
}
