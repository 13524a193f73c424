package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	ServerURL    string        `mapstructure:"server_url" yaml:"server_url"`
	Token        string        `mapstructure:"token" yaml:"token"`
	DefaultModel string        `mapstructure:"default_model" yaml:"default_model"`
	History      HistoryConfig `mapstructure:"history" yaml:"history"`
}

// HistoryConfig controls the local transcript store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

const (
	defaultServerURL = "http://localhost:8000"
	defaultModel     = "gemini-2.0-flash"
)

// Load reads the config file, falling back to defaults and environment
// variables. A missing file is not an error.
func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(configDir, "chatterm"))
	v.AddConfigPath(".")

	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("default_model", defaultModel)
	v.SetDefault("history.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The token usually lives in the environment rather than on disk.
	cfg.Token = expandEnv(cfg.Token)
	if cfg.Token == "" {
		cfg.Token = os.Getenv("CHATTERM_TOKEN")
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return &cfg, nil
}

// expandEnv expands ${VAR} or $VAR in a string.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigPath returns the path where the config file should be located.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "chatterm", "config.yaml"), nil
}

// Exists returns true if a config file exists.
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry a bearer token.
	return os.WriteFile(path, content, 0600)
}
