package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"scoutline/internal/domain"
)

// Config models scoutline.yml.
type Config struct {
	Account struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name,omitempty"`
	} `yaml:"account" json:"account"`
	Tracker struct {
		ShowClosed      bool   `yaml:"show_closed" json:"show_closed"`
		DefaultColor    string `yaml:"default_color" json:"default_color"`
		DefaultPriority string `yaml:"default_priority" json:"default_priority"`
		DefaultWindow   string `yaml:"default_window" json:"default_window"`
	} `yaml:"tracker" json:"tracker"`
	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
}

var windows = []string{"this_week", "next_week", "this_month", "backlog"}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("config.account.id is required")
	}
	if c.Tracker.DefaultColor != "" && !domain.ValidColor(c.Tracker.DefaultColor) {
		return fmt.Errorf("config.tracker.default_color %q is not one of %s", c.Tracker.DefaultColor, strings.Join(domain.Colors(), ", "))
	}
	if c.Tracker.DefaultPriority != "" {
		if _, ok := domain.ParsePriority(c.Tracker.DefaultPriority); !ok {
			return fmt.Errorf("config.tracker.default_priority %q is invalid", c.Tracker.DefaultPriority)
		}
	}
	if w := c.Tracker.DefaultWindow; w != "" && !contains(windows, w) {
		return fmt.Errorf("config.tracker.default_window %q is not one of %s", w, strings.Join(windows, ", "))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is invalid", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format must be json or console")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "scoutline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(accountID string) string {
	return fmt.Sprintf(defaultTemplate, accountID)
}

// Default returns the default Config struct for an account.
func Default(accountID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(accountID))).Decode(&cfg)
	cfg.Account.ID = accountID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
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

// Write stores the config as YAML in the workspace.
func Write(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

const defaultTemplate = `account:
  id: %s

tracker:
  show_closed: false
  default_color: blue
  default_priority: P2
  default_window: this_week

log:
  level: info
  format: console

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
