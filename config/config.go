package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auction AuctionConfig `yaml:"auction"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StorageConfig controls where auctions and bids are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, ":memory:", or empty for in-memory maps
}

// AuctionConfig controls bidding behavior.
type AuctionConfig struct {
	AntiSnipeWindowSeconds    int `yaml:"anti_snipe_window_seconds"`    // bids landing inside this window extend the auction
	AntiSnipeExtensionSeconds int `yaml:"anti_snipe_extension_seconds"` // how far one extension pushes the end time
	BidIntervalSeconds        int `yaml:"bid_interval_seconds"`         // authoritative per-user pacing between bids
	BidBurst                  int `yaml:"bid_burst"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file and the .env file if present. Env vars
// override the YAML values for the keys they cover. A missing config file is
// not an error: the defaults apply.
func Load(path string) (*Config, error) {
	// Load .env if present (no error when the file is absent)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// AntiSnipeWindow returns the anti-snipe window as a time.Duration.
func (c *Config) AntiSnipeWindow() time.Duration {
	return time.Duration(c.Auction.AntiSnipeWindowSeconds) * time.Second
}

// AntiSnipeExtension returns the anti-snipe extension as a time.Duration.
func (c *Config) AntiSnipeExtension() time.Duration {
	return time.Duration(c.Auction.AntiSnipeExtensionSeconds) * time.Second
}

// BidInterval returns the per-user authoritative bid pacing interval.
func (c *Config) BidInterval() time.Duration {
	return time.Duration(c.Auction.BidIntervalSeconds) * time.Second
}

// applyEnvOverrides overrides values with environment variables when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults ensures required values have sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Auction.AntiSnipeWindowSeconds <= 0 {
		cfg.Auction.AntiSnipeWindowSeconds = 30
	}
	if cfg.Auction.AntiSnipeExtensionSeconds <= 0 {
		cfg.Auction.AntiSnipeExtensionSeconds = 60
	}
	if cfg.Auction.BidIntervalSeconds <= 0 {
		cfg.Auction.BidIntervalSeconds = 2
	}
	if cfg.Auction.BidBurst <= 0 {
		cfg.Auction.BidBurst = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
