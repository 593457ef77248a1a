// Package config loads rigger settings from file, environment, and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings shared by every rigger command.
type Config struct {
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Journal   JournalConfig `mapstructure:"journal"`
	Gateway   GatewayConfig `mapstructure:"gateway"`
	Scripts   ScriptsConfig `mapstructure:"scripts"`
}

// JournalConfig controls run persistence.
type JournalConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
}

// GatewayConfig is the default bridge process launched by run.
type GatewayConfig struct {
	Command  []string `mapstructure:"command"`
	Dir      string   `mapstructure:"dir"`
	RingSize int      `mapstructure:"ring_size"`
}

// ScriptsConfig lists extra directories searched for scripts.
type ScriptsConfig struct {
	Paths []string `mapstructure:"paths"`
}

// Load reads configuration from path, or from
// ~/.config/rigger/config.yaml when path is empty. A missing default
// file is fine. Environment variables prefixed RIGGER_ override file
// values, with dots mapped to underscores (RIGGER_JOURNAL_PATH).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "rigger"))
		}
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RIGGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("journal.path", DefaultJournalPath())
	v.SetDefault("journal.disabled", false)
	v.SetDefault("gateway.command", []string{})
	v.SetDefault("gateway.dir", "")
	v.SetDefault("gateway.ring_size", 200)
	v.SetDefault("scripts.paths", []string{})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if c.Gateway.RingSize < 0 {
		return fmt.Errorf("gateway ring_size must not be negative")
	}
	return nil
}

// DefaultJournalPath returns the journal database location under the
// user config directory.
func DefaultJournalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".rigger", "journal.db")
	}
	return filepath.Join(dir, "rigger", "journal.db")
}
