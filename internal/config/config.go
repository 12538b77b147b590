// Package config loads agent configuration from an optional YAML file and
// MIDPOINT_AGENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable Load reads.
const EnvPrefix = "MIDPOINT_AGENT_"

// JournalFileName is the default run journal, kept next to the change files.
const JournalFileName = "MidPointPasswordFilterProcessor.db"

// ErrMissingAdminCredentials is returned by RequireAdminCredentials.
var ErrMissingAdminCredentials = errors.New("admin_username and admin_password must both be set")

// Config holds the agent configuration. Endpoint and EncryptorPath are left
// empty when unset so the adapters apply their built-in defaults.
type Config struct {
	Endpoint string `yaml:"endpoint"`

	// Both values are helper ciphertext, decrypted once at startup.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	SpoolDir         string        `yaml:"spool_dir"`
	EncryptorPath    string        `yaml:"encryptor_path"`
	EncryptorTimeout time.Duration `yaml:"encryptor_timeout"`

	// Empty disables the feature.
	JournalPath string `yaml:"journal_path"`
	MetricsPath string `yaml:"metrics_path"`
}

// DefaultSpoolDir returns the directory the password filter writes to.
func DefaultSpoolDir() string {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return filepath.Join(pd, "MidPointPasswordFilter")
	}
	return "/var/lib/midpoint-password-filter"
}

// Load reads the YAML file at path, when path is non-empty, then applies
// environment overrides and defaults. Recognized variables:
// MIDPOINT_AGENT_ENDPOINT, MIDPOINT_AGENT_ADMIN_USERNAME,
// MIDPOINT_AGENT_ADMIN_PASSWORD, MIDPOINT_AGENT_SPOOL_DIR,
// MIDPOINT_AGENT_ENCRYPTOR_PATH, MIDPOINT_AGENT_ENCRYPTOR_TIMEOUT,
// MIDPOINT_AGENT_JOURNAL_PATH and MIDPOINT_AGENT_METRICS_PATH. A variable
// that is set but empty clears the value, which is how the journal is
// switched off.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	journalSet := false

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		_, journalSet = raw["journal_path"]

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{"ENDPOINT", &cfg.Endpoint},
		{"ADMIN_USERNAME", &cfg.AdminUsername},
		{"ADMIN_PASSWORD", &cfg.AdminPassword},
		{"SPOOL_DIR", &cfg.SpoolDir},
		{"ENCRYPTOR_PATH", &cfg.EncryptorPath},
		{"JOURNAL_PATH", &cfg.JournalPath},
		{"METRICS_PATH", &cfg.MetricsPath},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(EnvPrefix + o.key); ok {
			*o.dst = v
			if o.key == "JOURNAL_PATH" {
				journalSet = true
			}
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "ENCRYPTOR_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%sENCRYPTOR_TIMEOUT has invalid duration %q: %w", EnvPrefix, v, err)
		}
		cfg.EncryptorTimeout = parsed
	}

	if cfg.SpoolDir == "" {
		cfg.SpoolDir = DefaultSpoolDir()
	}
	if cfg.EncryptorTimeout == 0 {
		cfg.EncryptorTimeout = 10 * time.Second
	}
	if !journalSet {
		cfg.JournalPath = filepath.Join(cfg.SpoolDir, JournalFileName)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.EncryptorTimeout < 0 {
		return fmt.Errorf("encryptor_timeout must be positive, got %s", c.EncryptorTimeout)
	}
	return nil
}

// RequireAdminCredentials fails when either encrypted admin credential is
// missing. Only commands that talk to the identity store need them.
func (c *Config) RequireAdminCredentials() error {
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return ErrMissingAdminCredentials
	}
	return nil
}
