// Package config handles configuration loading and validation for withdrawoor.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from files and flags.
type Loader struct {
	log logrus.FieldLogger
}

// NewLoader creates a new configuration loader.
func NewLoader(log logrus.FieldLogger) *Loader {
	return &Loader{
		log: log.WithField("component", "config"),
	}
}

// LoadConfig loads configuration from a YAML file.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromFlags loads configuration from viper flags.
func (l *Loader) LoadConfigFromFlags(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if val := v.GetString("network"); val != "" {
		cfg.Network = val
	}

	if val := v.GetString("el-rpc"); val != "" {
		cfg.ELRPC = val
	}

	if val := v.GetString("cl-client"); val != "" {
		cfg.CLClient = val
	}

	if val := v.GetString("vault"); val != "" {
		cfg.Vault = val
	}

	if val := v.GetString("db-path"); val != "" {
		cfg.DBPath = val
	}

	if val := v.GetString("proofs-binary"); val != "" {
		cfg.ProofsBinary = val
	}

	if val := v.GetString("proofs-workdir"); val != "" {
		cfg.ProofsWorkdir = val
	}

	if val := v.GetDuration("withdrawals-chunk"); val != 0 {
		cfg.WithdrawalsChunk = Duration(val)
	}

	cfg.PollInterval = Duration(v.GetDuration("poll-interval"))
	cfg.MetricsPort = v.GetInt("metrics-port")

	return cfg, nil
}

// ValidateConfig validates the configuration for consistency and completeness.
func ValidateConfig(cfg *Config) error {
	if _, ok := Networks[cfg.Network]; !ok {
		return fmt.Errorf("network: unknown network %q", cfg.Network)
	}

	if cfg.ELRPC == "" {
		return fmt.Errorf("el_rpc: execution layer RPC URL is required")
	}

	if _, err := url.Parse(cfg.ELRPC); err != nil {
		return fmt.Errorf("el_rpc: invalid URL: %w", err)
	}

	if cfg.CLClient == "" {
		return fmt.Errorf("cl_client: consensus layer URL is required")
	}

	if _, err := url.Parse(cfg.CLClient); err != nil {
		return fmt.Errorf("cl_client: invalid URL: %w", err)
	}

	if cfg.Vault == "" {
		return fmt.Errorf("vault: vault address is required")
	}

	if !common.IsHexAddress(cfg.Vault) {
		return fmt.Errorf("vault: %q is not a valid address", cfg.Vault)
	}

	if cfg.WithdrawalsChunk <= 0 {
		return fmt.Errorf("withdrawals_chunk: must be positive")
	}

	return nil
}
