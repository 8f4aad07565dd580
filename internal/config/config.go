package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Pool    PoolConfig    `yaml:"pool"`
	Query   QueryConfig   `yaml:"query"`
	History HistoryConfig `yaml:"history"`
	Audit   AuditConfig   `yaml:"audit"`
	// Theme names the output palette: default, light or monokai.
	Theme string `yaml:"theme"`
	// ConnectionsFile is the JSON array of connection URLs. Relative
	// paths resolve against ConfigDir.
	ConnectionsFile string `yaml:"connections_file"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "text" or "json"
}

// PoolConfig tunes the native pool behind each connection.
type PoolConfig struct {
	MaxConns       int32         `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CancelTimeout  time.Duration `yaml:"cancel_timeout"`
}

// QueryConfig holds execution defaults for new sessions.
type QueryConfig struct {
	DefaultLimit         int  `yaml:"default_limit"`
	UseSelectionAtCursor bool `yaml:"use_selection_at_cursor"`
}

// HistoryConfig controls the query history store.
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path,omitempty"`
	MaxEntries int    `yaml:"max_entries"`
}

// AuditConfig controls the JSON Lines audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Pool: PoolConfig{
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
			CancelTimeout:  5 * time.Second,
		},
		Query: QueryConfig{
			DefaultLimit: 0,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 5000,
		},
		Audit: AuditConfig{
			Enabled:   false,
			MaxSizeMB: 10,
		},
		Theme:           "default",
		ConnectionsFile: "connections.json",
	}
}

// ConfigDir returns the sqlace configuration directory path.
// It uses os.UserConfigDir to locate the base config directory and
// appends "sqlace" to it, typically resulting in ~/.config/sqlace/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "sqlace"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from the default path
// (ConfigDir()/config.yaml).
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not text or json", c.Log.Format)
	}
	if c.Pool.MaxConns < 0 {
		return fmt.Errorf("config: pool.max_conns must not be negative")
	}
	if c.Query.DefaultLimit < 0 {
		return fmt.Errorf("config: query.default_limit must not be negative")
	}
	return nil
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to the default path
// (ConfigDir()/config.yaml).
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// resolve joins a relative path onto ConfigDir.
func resolve(path, fallback string) (string, error) {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// ConnectionsPath is the absolute path of the connection list.
func (c *Config) ConnectionsPath() (string, error) {
	return resolve(c.ConnectionsFile, "connections.json")
}

// HistoryPath is the absolute path of the history database.
func (c *Config) HistoryPath() (string, error) {
	return resolve(c.History.Path, "history.db")
}

// AuditPath is the absolute path of the audit log.
func (c *Config) AuditPath() (string, error) {
	return resolve(c.Audit.Path, "audit.jsonl")
}

// LoadConnectionList reads the JSON array of connection URLs at path.
// A missing file is an empty list. Blank entries are dropped.
func LoadConnectionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read connection list: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []string{}, nil
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse connection list: %w", err)
	}
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}
