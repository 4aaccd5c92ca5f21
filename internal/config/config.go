// Package config loads runtime settings from .env files, environment
// variables and an optional config file, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable the binary reads at startup.
type Config struct {
	// ServerURL is the base URL of the remote API.
	ServerURL string `mapstructure:"server_url"`

	// DBPath is the local SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// SyncInterval is how often the daemon re-runs a push pass.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// RequestTimeout bounds each HTTP call to the server.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// DashboardAddr is the local dashboard listen address. Empty disables it.
	DashboardAddr string `mapstructure:"dashboard_addr"`

	// Environment selects logger encoding: "production" or "development".
	Environment string `mapstructure:"environment"`

	// LogFile, when set, mirrors daemon logs to a rotating file.
	LogFile string `mapstructure:"log_file"`
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tutorsync.db"
	}
	return filepath.Join(home, ".tutorsync", "tutorsync.db")
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present, then environment variables with the TUTORSYNC_ prefix,
// then an optional explicit config file (YAML), which wins.
func Load(configFile string) (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TUTORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:3000")
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("sync_interval", time.Minute)
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("dashboard_addr", "")
	v.SetDefault("environment", "development")
	v.SetDefault("log_file", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and invokes fn with the fresh
// values. Only meaningful when Load was given a config file.
func Watch(configFile string, fn func(*Config)) error {
	if configFile == "" {
		return fmt.Errorf("no config file to watch")
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := Load(configFile)
		if err != nil {
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive (got %s)", c.SyncInterval)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive (got %s)", c.ProbeInterval)
	}
	return nil
}
