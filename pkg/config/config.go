// Package config loads the gatekeeper run configuration: the ordered hint
// files with their issuers, the permissions file, the audit trail location
// and telemetry settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HintFile names one directive file and the issuer identity bound to it.
// File order in the config is the processing order; it is fixed and external,
// never inferred.
type HintFile struct {
	Path   string `yaml:"path"`
	Issuer string `yaml:"issuer"`
}

// Telemetry configures the OpenTelemetry provider.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Config holds one run's configuration.
type Config struct {
	HintFiles   []HintFile `yaml:"hint_files"`
	Permissions string     `yaml:"permissions"`
	AuditDB     string     `yaml:"audit_db"` // empty disables the trail
	LogLevel    string     `yaml:"log_level"`
	Telemetry   Telemetry  `yaml:"telemetry"`
	// Baseline lists item names already present in the target suite,
	// consulted by "block-all new-source".
	Baseline []string `yaml:"baseline"`
}

// Load reads a YAML config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if len(cfg.HintFiles) == 0 {
		return nil, fmt.Errorf("config: %s: no hint files configured", path)
	}
	for i, hf := range cfg.HintFiles {
		if hf.Path == "" || hf.Issuer == "" {
			return nil, fmt.Errorf("config: hint_files[%d]: path and issuer are required", i)
		}
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATEKEEPER_AUDIT_DB"); v != "" {
		c.AuditDB = v
	}
	if v := os.Getenv("GATEKEEPER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GATEKEEPER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
}
