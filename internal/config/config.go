// Package config handles application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"workshop_notifier/internal/model"
)

// Storage drivers for the ledger.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// DefaultFetchWindow is the number of newest items requested per app.
const DefaultFetchWindow = 10

// Storage selects and locates the ledger backend.
type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ChannelConfig is a single webhook destination in the config file.
type ChannelConfig struct {
	URL  string  `yaml:"url"`
	Apps []int64 `yaml:"apps"`
}

// Config holds the application configuration.
type Config struct {
	APIKey      string          `yaml:"api_key"`
	FetchWindow int             `yaml:"fetch_window"`
	LogLevel    string          `yaml:"log_level"`
	Storage     Storage         `yaml:"storage"`
	Channels    []ChannelConfig `yaml:"channels"`
}

// Load reads configuration from the file at CONFIG_PATH (default
// ./config.yaml), applies env overrides and validates the result.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config.yaml"
	}
	return LoadFile(path)
}

// LoadFile reads and validates a configuration file at the given path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := os.Getenv("STEAM_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	if cfg.FetchWindow <= 0 {
		cfg.FetchWindow = DefaultFetchWindow
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case DriverSQLite:
			cfg.Storage.Path = "./data/ledger.db"
		default:
			cfg.Storage.Path = "./data/ledger.json"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (or set STEAM_API_KEY)")
	}
	if c.Storage.Driver != DriverFile && c.Storage.Driver != DriverSQLite {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	for i, ch := range c.Channels {
		if ch.URL == "" {
			return fmt.Errorf("channel %d: url is required", i)
		}
		if len(ch.Apps) == 0 {
			return fmt.Errorf("channel %d: at least one app id is required", i)
		}
	}
	return nil
}

// ChannelList resolves the configured channels into domain values, computing
// the stable ledger key for each webhook URL.
func (c *Config) ChannelList() []model.Channel {
	channels := make([]model.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		channels = append(channels, model.Channel{
			Key:  ChannelKey(ch.URL),
			URL:  ch.URL,
			Apps: ch.Apps,
		})
	}
	return channels
}

// ChannelKey returns the stable one-way digest of a webhook URL used to key
// the ledger. Only stability across runs matters, not the algorithm.
func ChannelKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)
}
