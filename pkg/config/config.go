// Package config loads the data node process's configuration from a YAML
// file, environment variables, and defaults, following the same
// precedence and viper/mapstructure wiring the rest of this module's
// ancestry uses for its own config.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the data node process's static configuration. Values come from
// DATANODE_* environment variables, the config file, and Default, in that
// order of precedence. The entry point defines no command-line flag for
// any of these fields.
type Config struct {
	// NodeID is this node's identity, reported on Heartbeat.
	NodeID string `mapstructure:"node_id" yaml:"node_id"`

	// BlocksDir is where blk_*.img files live.
	BlocksDir string `mapstructure:"blocks_dir" yaml:"blocks_dir"`

	// ListenPort is the RPC listen port.
	ListenPort int `mapstructure:"listen_port" yaml:"listen_port"`

	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CacheConfig controls the page cache's size and eviction policy.
type CacheConfig struct {
	// Enabled selects write-back caching; when false, writes and reads
	// bypass the cache and go straight to DiskStore.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// SizePages is the cache's capacity in pages (pages × block.Size bytes).
	SizePages int `mapstructure:"size_pages" yaml:"size_pages"`

	// Policy selects the eviction policy: "LRU" or "LFU".
	Policy string `mapstructure:"policy" yaml:"policy"`
}

// LoggingConfig controls log output, matching the levels and formats
// internal/logger accepts.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Default returns the built-in configuration defaults: node id
// "datanode-1", blocks directory "./blocks", port 50051, cache disabled
// with a 4096-page LRU cache if enabled.
func Default() *Config {
	return &Config{
		NodeID:     "datanode-1",
		BlocksDir:  "./blocks",
		ListenPort: 50051,
		Cache: CacheConfig{
			Enabled:   false,
			SizePages: 4096,
			Policy:    "LRU",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads configuration from configPath (if non-empty and present),
// environment variables prefixed DATANODE_, and falls back to Default for
// anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := Default()
	bindEnvDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DATANODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("datanode")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// bindEnvDefaults seeds viper with the struct defaults so that every key is
// known to viper: environment variables then apply even to keys the config
// file does not set, and layer on top of Default rather than on top of
// viper's zero values.
func bindEnvDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("blocks_dir", cfg.BlocksDir)
	v.SetDefault("listen_port", cfg.ListenPort)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.size_pages", cfg.Cache.SizePages)
	v.SetDefault("cache.policy", cfg.Cache.Policy)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
}

// Validate rejects configurations the node cannot start with.
func Validate(cfg *Config) error {
	if cfg.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if cfg.BlocksDir == "" {
		return fmt.Errorf("blocks_dir must not be empty")
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", cfg.ListenPort)
	}
	if cfg.Cache.Enabled {
		if cfg.Cache.SizePages <= 0 {
			return fmt.Errorf("cache.size_pages must be positive when the cache is enabled")
		}
		switch strings.ToUpper(cfg.Cache.Policy) {
		case "LRU", "LFU":
		default:
			return fmt.Errorf("cache.policy %q must be LRU or LFU", cfg.Cache.Policy)
		}
	}
	return nil
}
