package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds agent configuration, loadable from a TOML file.
type Config struct {
	// File is the log file to tail.
	File string `toml:"file"`
	// Server is the ingestion address, host:port.
	Server string `toml:"server"`
	// Source names this agent in ingested records. Defaults to File.
	Source string `toml:"source"`
	// ReconnectDelay is the wait between connection attempts.
	ReconnectDelay time.Duration `toml:"reconnect_delay"`
	// FromStart tails the file from the beginning instead of the end.
	FromStart bool `toml:"from_start"`
}

// DefaultConfig returns agent defaults; File must still be set.
func DefaultConfig() Config {
	return Config{
		Server:         "localhost:9999",
		ReconnectDelay: time.Second,
	}
}

// LoadConfig reads a TOML config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("config: file is required")
	}
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	if c.Source == "" {
		c.Source = c.File
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	return nil
}
