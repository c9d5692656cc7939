package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.ELRPC = "http://localhost:8545"
	cfg.CLClient = "http://localhost:5052"
	cfg.Vault = "0xAC0F997341958E1bB5bcbEa24c7e58E5E1d1f49a"

	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	require.NoError(t, ValidateConfig(validTestConfig()))
}

func TestValidateConfig_UnknownNetwork(t *testing.T) {
	cfg := validTestConfig()
	cfg.Network = "sepolia"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown network")
}

func TestValidateConfig_MissingEndpoints(t *testing.T) {
	cfg := validTestConfig()
	cfg.ELRPC = ""
	require.Error(t, ValidateConfig(cfg))

	cfg = validTestConfig()
	cfg.CLClient = ""
	require.Error(t, ValidateConfig(cfg))
}

func TestValidateConfig_BadVault(t *testing.T) {
	cfg := validTestConfig()
	cfg.Vault = "not-an-address"
	require.Error(t, ValidateConfig(cfg))

	cfg.Vault = ""
	require.Error(t, ValidateConfig(cfg))
}

func TestValidateConfig_ChunkMustBePositive(t *testing.T) {
	cfg := validTestConfig()
	cfg.WithdrawalsChunk = 0
	require.Error(t, ValidateConfig(cfg))
}

func TestLoadConfig_AppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
network: holesky
el_rpc: http://localhost:8545
cl_client: http://localhost:5052
vault: "0xAC0F997341958E1bB5bcbEa24c7e58E5E1d1f49a"
withdrawals_chunk: 2h
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewLoader(logrus.New()).LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "holesky", cfg.Network)
	require.Equal(t, 2*time.Hour, cfg.WithdrawalsChunk.Duration())

	// Fields absent from the file keep their defaults.
	require.Equal(t, DefaultConfig().DBPath, cfg.DBPath)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := NewLoader(logrus.New()).LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNetworkChunkBlocks(t *testing.T) {
	net := Networks["mainnet"]

	// 6 hours of 12-second blocks.
	require.Equal(t, uint64(1800), net.ChunkBlocks(6*time.Hour))

	// Sub-block durations still scan one block at a time.
	require.Equal(t, uint64(1), net.ChunkBlocks(time.Second))
}

func TestNetworks_KnownConstants(t *testing.T) {
	for name, net := range Networks {
		require.NotZero(t, net.ChainID, name)
		require.NotZero(t, net.KeeperGenesisBlock, name)
		require.NotZero(t, net.SecondsPerBlock, name)
	}

	require.Equal(t, uint64(1), Networks["mainnet"].ChainID)
	require.Equal(t, uint64(17000), Networks["holesky"].ChainID)
}
