package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Crawl     CrawlConfig     `yaml:"crawl" envPrefix:"CRAWL_"`
	Upstreams UpstreamsConfig `yaml:"upstreams" envPrefix:"UPSTREAM_"`
	Refresh   RefreshConfig   `yaml:"refresh" envPrefix:"REFRESH_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig selects the logger
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`       // debug, info, warn, error
	Encoding    string `yaml:"encoding" env:"ENCODING"` // json or console
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// CrawlConfig bounds a single crawl
type CrawlConfig struct {
	MaxRounds   int      `yaml:"max_rounds" env:"MAX_ROUNDS"`
	MaxVisited  int      `yaml:"max_visited" env:"MAX_VISITED"`
	Concurrency int      `yaml:"concurrency" env:"CONCURRENCY"`
	Timeout     Duration `yaml:"timeout" env:"TIMEOUT"`
}

// UpstreamConfig defines settings for a single upstream source
type UpstreamConfig struct {
	Enabled   bool     `yaml:"enabled" env:"ENABLED"`
	URL       string   `yaml:"url,omitempty" env:"URL"` // empty = built-in endpoint
	Timeout   Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit float64  `yaml:"rate_limit,omitempty" env:"RATE_LIMIT"` // requests per second, 0 = unlimited
	Burst     int      `yaml:"burst,omitempty" env:"BURST"`
}

// UpstreamsConfig holds the settings of every upstream source
type UpstreamsConfig struct {
	NextID     UpstreamConfig `yaml:"nextid" envPrefix:"NEXTID_"`
	SybilList  UpstreamConfig `yaml:"sybil_list" envPrefix:"SYBIL_LIST_"`
	ENSReverse UpstreamConfig `yaml:"ens_reverse" envPrefix:"ENS_REVERSE_"`
	TheGraph   UpstreamConfig `yaml:"the_graph" envPrefix:"THE_GRAPH_"`
	SpaceID    UpstreamConfig `yaml:"space_id" envPrefix:"SPACE_ID_"`
	DotBit     UpstreamConfig `yaml:"dotbit" envPrefix:"DOTBIT_"`
	RSS3       UpstreamConfig `yaml:"rss3" envPrefix:"RSS3_"`

	// SybilListTTL is how long the downloaded allow-list is reused
	SybilListTTL Duration `yaml:"sybil_list_ttl" env:"SYBIL_LIST_TTL"`
}

// RefreshConfig schedules periodic re-crawls in serve mode
type RefreshConfig struct {
	Enabled  bool     `yaml:"enabled" env:"ENABLED"`
	Schedule string   `yaml:"schedule" env:"SCHEDULE"` // cron spec or @every descriptor
	Seeds    []string `yaml:"seeds,omitempty" env:"SEEDS"`
}

// MetricsConfig exposes Prometheus metrics in serve mode
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

// Duration wraps time.Duration for YAML and environment parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
