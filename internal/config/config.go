package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UnlimitedHistory is the sentinel for "no history limit".
const UnlimitedHistory = 0

type Config struct {
	// HistoryLimit caps how many items are loaded into the store.
	// 0 means unlimited.
	HistoryLimit int `json:"history_limit"`

	// AutoStartMonitoring starts the clipboard monitor as soon as the
	// application initializes, without waiting for an explicit Start.
	AutoStartMonitoring bool `json:"auto_start_monitoring"`

	MonitorInterval int `json:"monitor_interval_ms"`
	MaxItemSize     int `json:"max_item_size_bytes"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

func Default() *Config {
	return &Config{
		HistoryLimit:        1000,
		AutoStartMonitoring: true,

		MonitorInterval: 500,
		MaxItemSize:     10 * 1024 * 1024, // 10MB

		LogLevel:  "info",
		LogFormat: "text",
	}
}

func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return default config if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.validate()

	return config, nil
}

func (c *Config) Save(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) validate() {
	if c.HistoryLimit < 0 {
		c.HistoryLimit = UnlimitedHistory
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 500
	}
	if c.MaxItemSize <= 0 {
		c.MaxItemSize = 10 * 1024 * 1024
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}
