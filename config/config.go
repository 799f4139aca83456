// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vestflow-xyz/go-vestflow/access"
)

// Config is the full daemon configuration.
type Config struct {
	// Bind is the HTTP API listen address.
	Bind string `yaml:"bind"`

	// MetricsBind is the Prometheus listen address; empty disables metrics.
	MetricsBind string `yaml:"metrics_bind"`

	// DatabasePath is the SQLite file holding engine state. Empty keeps
	// state in memory only.
	DatabasePath string `yaml:"database_path"`

	// JournalPath is the JSONL audit trail file; empty disables the journal.
	JournalPath string `yaml:"journal_path"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Owner is the address owning the engine instance the daemon serves.
	Owner string `yaml:"owner"`

	Asset   AssetConfig    `yaml:"asset"`
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// AssetConfig bootstraps the in-memory ledger the daemon runs against.
type AssetConfig struct {
	// InitialSupply is minted to the treasury account at startup (decimal).
	InitialSupply string `yaml:"initial_supply"`

	// Treasury is the account the initial supply is minted to.
	Treasury string `yaml:"treasury"`
}

// APIKeyConfig maps an API key to a caller identity and its capabilities.
type APIKeyConfig struct {
	Key     string   `yaml:"key"`
	Address string   `yaml:"address"`
	Roles   []string `yaml:"roles"`
}

// Caller builds the capability context this API key authenticates as.
func (k APIKeyConfig) Caller() access.Caller {
	roles := make([]access.Role, 0, len(k.Roles))
	for _, r := range k.Roles {
		roles = append(roles, access.Role(r))
	}
	return access.NewCaller(k.Address, roles...)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Bind:        ":8080",
		MetricsBind: ":9090",
		LogLevel:    "info",
		Owner:       "0xowner",
		Asset: AssetConfig{
			InitialSupply: "1000000000000000000000000",
			Treasury:      "0xtreasury",
		},
	}
}

// Load reads and validates a YAML configuration file. Missing fields fall
// back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	if c.Bind == "" {
		return fmt.Errorf("config: bind address is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("config: owner address is required")
	}
	for i, k := range c.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("config: api_keys[%d]: key is required", i)
		}
		if k.Address == "" {
			return fmt.Errorf("config: api_keys[%d]: address is required", i)
		}
		for _, r := range k.Roles {
			switch access.Role(r) {
			case access.RoleAdmin, access.RoleGranter:
			default:
				return fmt.Errorf("config: api_keys[%d]: unknown role %q", i, r)
			}
		}
	}
	return nil
}
