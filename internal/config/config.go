package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/thanos-io/thanos/pkg/tracing/otlp"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Current   string             `yaml:"current,omitempty"`
	Profiles  map[string]Profile `yaml:"profiles,omitempty"`
	Telemetry TelemetryConfig    `yaml:"telemetry,omitempty"`
	Tracing   *otlp.Config       `yaml:"tracing,omitempty"`
}

// Profile is a stored connection target. Passwords are deliberately not
// part of the file format, they live in the OS keyring under the profile
// name.
type Profile struct {
	URLs              []string `yaml:"urls,omitempty"`
	User              string   `yaml:"user,omitempty"`
	Secure            bool     `yaml:"secure,omitempty"`
	AcceptInvalidCert bool     `yaml:"accept_invalid_certificate,omitempty"`
}

type TelemetryConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	JobName        string `yaml:"job_name,omitempty"`
}

var DefaultConfig = &Config{}

// DefaultPath is the per-user config location, created on first save.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "clickaudit", "config.yaml"), nil
}

// LoadConfig reads path into DefaultConfig. A missing file is fine,
// commands run on bare connection flags before any profile exists.
func LoadConfig(path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(f, DefaultConfig)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

// Save writes the config atomically with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set config file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// ProfileNames returns the stored profile names in stable order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) IsTracingEnabled() bool {
	if c == nil {
		return false
	}
	return c.Tracing != nil
}

func (c *Config) GetTracingServiceName() string {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		if c == nil || c.Tracing == nil {
			return ""
		}
		return c.Tracing.ServiceName
	}
	return serviceName
}
