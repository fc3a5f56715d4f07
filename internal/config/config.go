package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models trayline.yml.
type Config struct {
	Facility struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"facility"`
	Alerts struct {
		PantryThresholdMinutes   int `yaml:"pantry_threshold_minutes"`
		DeliveryThresholdMinutes int `yaml:"delivery_threshold_minutes"`
	} `yaml:"alerts"`
	Meals struct {
		Slots []string `yaml:"slots"`
	} `yaml:"meals"`
	DietChart struct {
		GeneratorURL string `yaml:"generator_url"`
		Model        string `yaml:"model"`
	} `yaml:"diet_chart"`
}

// PantryThreshold returns the configured pantry staleness window.
func (c *Config) PantryThreshold() time.Duration {
	return time.Duration(c.Alerts.PantryThresholdMinutes) * time.Minute
}

// DeliveryThreshold returns the configured delivery staleness window.
func (c *Config) DeliveryThreshold() time.Duration {
	return time.Duration(c.Alerts.DeliveryThresholdMinutes) * time.Minute
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Facility.ID == "" {
		return fmt.Errorf("config.facility.id is required")
	}
	if c.Alerts.PantryThresholdMinutes <= 0 {
		return fmt.Errorf("config.alerts.pantry_threshold_minutes must be positive")
	}
	if c.Alerts.DeliveryThresholdMinutes <= 0 {
		return fmt.Errorf("config.alerts.delivery_threshold_minutes must be positive")
	}
	if len(c.Meals.Slots) == 0 {
		return fmt.Errorf("config.meals.slots is required")
	}
	for _, slot := range c.Meals.Slots {
		if slot == "" {
			return fmt.Errorf("config.meals.slots contains empty slot name")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trayline.yml")
}

// Load reads and validates config from workspace, falling back to defaults
// when no file exists.
func Load(workspace string) (*Config, error) {
	cfg, err := FromFile(Path(workspace))
	if os.IsNotExist(err) {
		return Default("default-facility"), nil
	}
	return cfg, err
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a facility.
func Default(facilityID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, facilityID)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(facilityID string) string {
	return fmt.Sprintf(defaultTemplate, facilityID)
}

const defaultTemplate = `facility:
  id: %s
  name: "Hospital Food Service"

alerts:
  pantry_threshold_minutes: 15
  delivery_threshold_minutes: 30

meals:
  slots: [morning, evening, night]

diet_chart:
  generator_url: ""
  model: "text-draft-1"
`
