// Package config loads local configuration and parses the backend's
// app-bootstrap document. Configuration objects are constructed explicitly
// and passed down; nothing in this package initializes at import time.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the local client configuration.
type Config struct {
	// APIBaseURL is the backend root, e.g. "https://api.pattern.app".
	APIBaseURL string `mapstructure:"api_base_url"`
	// Token is the bearer token for authenticated calls; empty means
	// anonymous.
	Token string `mapstructure:"token"`
	// UserID identifies the authenticated user, used to key login-driven
	// sync. Empty when anonymous.
	UserID string `mapstructure:"user_id"`
	// Language is the locale tag sent with analysis requests.
	Language string `mapstructure:"language"`
	// DataDir overrides the default ~/.pattern data directory.
	DataDir string `mapstructure:"data_dir"`
}

// Load reads configuration from the given file (optional), the environment
// (PATTERN_* variables) and defaults, in descending precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("api_base_url", "http://localhost:8490")
	v.SetDefault("language", "en")

	v.SetEnvPrefix("PATTERN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}
