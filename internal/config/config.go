package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultWindowDays is the rolling activity window used by the sweep.
const DefaultWindowDays = 30

// Config models pulsewatch.yml.
type Config struct {
	Auth struct {
		// ServiceToken guards the manual POST trigger; it is also the HS256
		// signing secret for service-issued JWTs.
		ServiceToken string `yaml:"service_token"`
		// CronSecret guards the scheduler GET trigger.
		CronSecret string `yaml:"cron_secret"`
	} `yaml:"auth"`
	Github struct {
		// Token is optional; unauthenticated requests work for public repos
		// at a lower rate limit.
		Token string `yaml:"token"`
	} `yaml:"github"`
	Scan struct {
		WindowDays int `yaml:"window_days"`
	} `yaml:"scan"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run pw init or create it by hand", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes and checks the config.
func (c *Config) Validate() error {
	if c.Scan.WindowDays == 0 {
		c.Scan.WindowDays = DefaultWindowDays
	}
	if c.Scan.WindowDays < 0 {
		return fmt.Errorf("config.scan.window_days must be positive")
	}
	return nil
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	cfg.Scan.WindowDays = DefaultWindowDays
	return &cfg
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pulsewatch.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `auth:
  # Bearer token for the manual POST /v0/risk-scan trigger. Also the HS256
  # signing secret for service-issued JWTs.
  service_token: ""
  # Bearer token for the scheduler GET /v0/risk-scan trigger.
  cron_secret: ""

github:
  # Optional personal access token; raises the API rate limit.
  token: ""

scan:
  window_days: 30
`
