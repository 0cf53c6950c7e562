// Package config defines the settings bundle this module's request
// handling and store maintenance depend on, following the struct-tag
// convention (conf/yaml/json) the rest of the stack expects.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML as either a
// Go duration string ("30s", "5m") or a bare number of nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}

		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	default:
		return fmt.Errorf("cannot parse %v as duration", raw)
	}

	return nil
}

// Config is the top-level settings bundle loaded at startup.
type Config struct {
	Port int    `conf:"port" yaml:"port" json:"port"`
	Name string `conf:"name" yaml:"name" json:"name"`

	Upstream Upstream `conf:"upstream" yaml:"upstream" json:"upstream"`
	Render   Render   `conf:"render" yaml:"render" json:"render"`
	Asset    Asset    `conf:"asset" yaml:"asset" json:"asset"`
	Store    Store    `conf:"store" yaml:"store" json:"store"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
}

// Upstream is the Grok conversational provider endpoint configuration.
type Upstream struct {
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`
}

// Render carries the per-request rendering defaults fed into the NDJSON →
// SSE transformer's Settings.
type Render struct {
	ShowThinking       bool   `conf:"show_thinking" yaml:"show_thinking" json:"show_thinking"`
	ShowSearch         bool   `conf:"show_search" yaml:"show_search" json:"show_search"`
	FilteredTags       string `conf:"filtered_tags" yaml:"filtered_tags" json:"filtered_tags"`
	VideoPosterPreview bool   `conf:"video_poster_preview" yaml:"video_poster_preview" json:"video_poster_preview"`

	FirstTimeout Duration `conf:"first_timeout" yaml:"first_timeout" json:"first_timeout"`
	ChunkTimeout Duration `conf:"chunk_timeout" yaml:"chunk_timeout" json:"chunk_timeout"`
	TotalTimeout Duration `conf:"total_timeout" yaml:"total_timeout" json:"total_timeout"`
}

// Asset is the asset-proxy URL rewriting configuration.
type Asset struct {
	ProxyBaseURL string `conf:"proxy_base_url" yaml:"proxy_base_url" json:"proxy_base_url"`
}

// Store is the conversation continuation store's maintenance
// configuration.
type Store struct {
	DSN               string   `conf:"dsn" yaml:"dsn" json:"dsn"`
	TTL               Duration `conf:"ttl" yaml:"ttl" json:"ttl"`
	CleanupInterval   Duration `conf:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
	CleanupBatchLimit int      `conf:"cleanup_batch_limit" yaml:"cleanup_batch_limit" json:"cleanup_batch_limit"`
	TrimKeepPerToken  int      `conf:"trim_keep_per_token" yaml:"trim_keep_per_token" json:"trim_keep_per_token"`
}

// Default returns the module's baked-in defaults, overridden by whatever a
// loaded config file supplies.
func Default() Config {
	return Config{
		Port: 8080,
		Name: "grok-bridge",
		Render: Render{
			ShowThinking: true,
			ShowSearch:   true,
			FirstTimeout: Duration(30 * time.Second),
			ChunkTimeout: Duration(20 * time.Second),
			TotalTimeout: Duration(5 * time.Minute),
		},
		Store: Store{
			DSN:               "file:grok-bridge.db",
			TTL:               Duration(24 * time.Hour),
			CleanupInterval:   Duration(10 * time.Minute),
			CleanupBatchLimit: 200,
			TrimKeepPerToken:  50,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}
