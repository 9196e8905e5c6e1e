// Package config loads the YAML configuration of a BlockVote node.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "blockvote.yaml"

type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Peers     PeersConfig     `yaml:"peers"`
	Election  ElectionConfig  `yaml:"election"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Authority AuthorityConfig `yaml:"authority"`
}

type NodeConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	// MinerID receives the mining rewards; a random id is used when empty.
	MinerID string `yaml:"miner_id"`
}

type PeersConfig struct {
	Addresses []string      `yaml:"addresses"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ElectionConfig bounds vote admission. Both ends are RFC 3339 timestamps
// and must be set together.
type ElectionConfig struct {
	Start string `yaml:"start,omitempty"`
	End   string `yaml:"end,omitempty"`
}

type DiscoveryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Port     int           `yaml:"port"`
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	File          string `yaml:"file,omitempty"`
	FileMaxSizeMB int    `yaml:"file_max_size_mb,omitempty"`
}

type AuthorityConfig struct {
	Enabled bool   `yaml:"enabled"`
	KeyFile string `yaml:"key_file"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Host:    "0.0.0.0",
			Port:    5000,
			DataDir: "data",
		},
		Peers: PeersConfig{
			Addresses: []string{},
			Timeout:   5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled:  false,
			Port:     9999,
			Interval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Authority: AuthorityConfig{
			Enabled: false,
			KeyFile: filepath.Join("data", "authority.pem"),
		},
	}
}

// Load reads the configuration at path, creating it with defaults when it
// does not exist, and validates it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		return fmt.Errorf("node.port must be between 1 and 65535")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir cannot be empty")
	}
	if c.Peers.Timeout < 100*time.Millisecond {
		return fmt.Errorf("peers.timeout must be at least 100ms")
	}
	for i, addr := range c.Peers.Addresses {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("peers.addresses[%d] cannot be empty", i)
		}
	}
	if _, _, err := c.Election.Window(); err != nil {
		return err
	}
	if c.Discovery.Enabled {
		if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
			return fmt.Errorf("discovery.port must be between 1 and 65535")
		}
		if c.Discovery.Interval <= 0 {
			return fmt.Errorf("discovery.interval must be positive")
		}
	}
	if err := validateLogging(&c.Logging); err != nil {
		return err
	}
	if c.Authority.Enabled && c.Authority.KeyFile == "" {
		return fmt.Errorf("authority.key_file is required when the authority is enabled")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(cfg.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[cfg.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if cfg.FileMaxSizeMB < 0 {
		return fmt.Errorf("logging.file_max_size_mb cannot be negative")
	}
	return nil
}

// Window parses the election bounds. Zero times are returned when no
// window is configured.
func (e ElectionConfig) Window() (start, end time.Time, err error) {
	if e.Start == "" && e.End == "" {
		return time.Time{}, time.Time{}, nil
	}
	if e.Start == "" || e.End == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("election.start and election.end must be set together")
	}
	start, err = time.Parse(time.RFC3339, e.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("election.start: %w", err)
	}
	end, err = time.Parse(time.RFC3339, e.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("election.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("election.end is before election.start")
	}
	return start, end, nil
}

// Set reports whether an election window is configured.
func (e ElectionConfig) Set() bool {
	return e.Start != "" || e.End != ""
}
