package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-eswifi/eswifi"
)

// Config holds the eswifictl configuration.
type Config struct {
	Device     string        `yaml:"device"`
	SpeedHz    uint32        `yaml:"speed_hz"`
	Pins       PinConfig     `yaml:"pins"`
	SSID       string        `yaml:"ssid"`
	Passphrase string        `yaml:"passphrase"`
	Security   string        `yaml:"security"`
	Timeout    time.Duration `yaml:"timeout"`
	LogLevel   string        `yaml:"log_level"`
}

// PinConfig holds the GPIO numbers of the module control lines.
type PinConfig struct {
	Select int `yaml:"select"`
	Reset  int `yaml:"reset"`
	Wakeup int `yaml:"wakeup"` // negative when not wired
	Ready  int `yaml:"ready"`
}

// DefaultConfigPath returns the default config file path: ~/.eswifi/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".eswifi", "config.yaml")
	}

	return filepath.Join(home, ".eswifi", "config.yaml")
}

// LoadConfig reads the configuration from the given YAML file path.
// If the file does not exist, it returns the default Config with no error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Device:   "/dev/spidev0.0",
		SpeedHz:  10_000_000,
		Pins:     PinConfig{Select: 8, Reset: 25, Wakeup: -1, Ready: 24},
		Security: eswifi.SecurityWPA2.String(),
		Timeout:  eswifi.DefaultTimeout,
		LogLevel: "info",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// SecurityType returns the configured security type.
func (c *Config) SecurityType() (eswifi.Security, error) {
	sec, ok := eswifi.ParseSecurity(c.Security)
	if !ok {
		return eswifi.SecurityUnknown, fmt.Errorf("unknown security %q", c.Security)
	}

	return sec, nil
}
