package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Network:          "mainnet",
		DBPath:           "withdrawoor.db",
		ProofsBinary:     "bin/generation",
		ProofsWorkdir:    ".",
		WithdrawalsChunk: Duration(6 * time.Hour),
	}
}

// Networks holds the compiled-in per-network constants.
var Networks = map[string]*NetworkConfig{
	"mainnet": {
		ChainID:                   1,
		KeeperGenesisBlock:        18470089,
		SecondsPerBlock:           12,
		SlotsPerEpoch:             32,
		ShapellaSlot:              6209536,
		PodManagerContract:        common.HexToAddress("0x91E677b07F7AF907ec9a428aafA9fc14a0d3A338"),
		DelegationManagerContract: common.HexToAddress("0x39053D51B77DC0d36036Fc1fCc8Cb819df8Ef37A"),
		MulticallContract:         common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		DefaultStrategy:           common.HexToAddress("0xbeaC0eeEeeeeEEeEeEEEEeeEEeEeeeEeeEEBEaC0"),
	},
	"holesky": {
		ChainID:                   17000,
		KeeperGenesisBlock:        215379,
		SecondsPerBlock:           12,
		SlotsPerEpoch:             32,
		ShapellaSlot:              0,
		PodManagerContract:        common.HexToAddress("0x30770d7E3e71112d7A6b7259542D1f680a70e315"),
		DelegationManagerContract: common.HexToAddress("0xA44151489861Fe9e3055d95adC98FbD462B948e7"),
		MulticallContract:         common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		DefaultStrategy:           common.HexToAddress("0xbeaC0eeEeeeeEEeEeEEEEeeEEeEeeeEeeEEBEaC0"),
	},
}
