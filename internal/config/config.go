package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Retention policies for audit rows when their report is deleted.
const (
	RetainLogs  = "retain"
	CascadeLogs = "cascade"
)

// Config models riverwatch.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Retention struct {
		// OnReportDelete decides what happens to admin_logs and
		// confirmations referencing a deleted report: "retain" keeps
		// them (matching historical behavior), "cascade" removes them.
		OnReportDelete string `yaml:"on_report_delete"`
	} `yaml:"retention"`
	Pagination struct {
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"pagination"`
	Admin struct {
		// User is the identity recorded in admin_logs and
		// last_updated_by for every admin mutation.
		User string `yaml:"user"`
	} `yaml:"admin"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Retention.OnReportDelete {
	case RetainLogs, CascadeLogs:
	default:
		return fmt.Errorf("config.retention.on_report_delete must be %q or %q", RetainLogs, CascadeLogs)
	}
	if c.Pagination.DefaultLimit <= 0 {
		return fmt.Errorf("config.pagination.default_limit must be positive")
	}
	if c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("config.pagination.max_limit must be >= default_limit")
	}
	if c.Admin.User == "" {
		return fmt.Errorf("config.admin.user is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "riverwatch.yml")
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v1"
	cfg.Retention.OnReportDelete = RetainLogs
	cfg.Pagination.DefaultLimit = 50
	cfg.Pagination.MaxLimit = 200
	cfg.Admin.User = "admin"
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields left
// unset in the file keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the workspace config, or defaults if no file exists.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}
