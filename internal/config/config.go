// ABOUTME: Configuration loading and parsing for snipevault
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete snipevault configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	RPC      RPCConfig      `yaml:"rpc"`
	Payments PaymentsConfig `yaml:"payments"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig holds the durable store location.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// RPCConfig holds the Solana RPC endpoint configuration.
type RPCConfig struct {
	URL string `yaml:"url"`
}

// PaymentsConfig holds x402 payment configuration.
type PaymentsConfig struct {
	MaxUSDCPerDay  float64 `yaml:"max_usdc_per_day"`
	FacilitatorURL string  `yaml:"facilitator_url"`
}

// SessionsConfig holds wallet-session lifecycle configuration.
type SessionsConfig struct {
	DefaultTTL    time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	DefaultTTLRaw    string `yaml:"default_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset optional fields.
func (c *Config) applyDefaults() {
	if c.RPC.URL == "" {
		c.RPC.URL = "https://api.mainnet-beta.solana.com"
	}
	if c.Sessions.DefaultTTL == 0 {
		c.Sessions.DefaultTTL = 24 * time.Hour
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = 5 * time.Minute
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Payments.MaxUSDCPerDay < 0 {
		return fmt.Errorf("payments.max_usdc_per_day must not be negative")
	}
	if c.Sessions.DefaultTTL < 0 {
		return fmt.Errorf("sessions.default_ttl must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.DefaultTTLRaw != "" {
		cfg.Sessions.DefaultTTL, err = time.ParseDuration(cfg.Sessions.DefaultTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing default_ttl %q: %w", cfg.Sessions.DefaultTTLRaw, err)
		}
	}

	if cfg.Sessions.SweepIntervalRaw != "" {
		cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
		}
	}

	return nil
}
