package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for withdrawoor.
type Config struct {
	// Network selects the compiled-in network constants.
	Network string `yaml:"network"`

	// ELRPC is the execution layer JSON-RPC URL.
	ELRPC string `yaml:"el_rpc"`

	// CLClient is the consensus layer beacon API URL.
	CLClient string `yaml:"cl_client"`

	// Vault is the restaking vault contract address.
	Vault string `yaml:"vault"`

	// DBPath is the checkpoint database file path.
	DBPath string `yaml:"db_path"`

	// ProofsBinary is the path to the proofs-generation executable.
	ProofsBinary string `yaml:"proofs_binary"`

	// ProofsWorkdir is where proof staging files are written.
	ProofsWorkdir string `yaml:"proofs_workdir"`

	// WithdrawalsChunk is the wall-clock width of one validator-withdrawal
	// query; divided by the network's seconds-per-block it bounds the block
	// range of a single fetch.
	WithdrawalsChunk Duration `yaml:"withdrawals_chunk"`

	// PollInterval runs cycles on an interval when non-zero; zero runs one
	// cycle and exits.
	PollInterval Duration `yaml:"poll_interval"`

	// MetricsPort serves prometheus metrics when non-zero.
	MetricsPort int `yaml:"metrics_port"`
}

// Duration is a time.Duration that accepts YAML strings like "6h".
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// NetworkConfig holds per-network constants. Initialized once at startup and
// never mutated.
type NetworkConfig struct {
	ChainID uint64

	// KeeperGenesisBlock is the deployment block of the vault keeper, the
	// earliest block any scan needs to consider.
	KeeperGenesisBlock uint64

	SecondsPerBlock uint64
	SlotsPerEpoch   uint64

	// ShapellaSlot is the first slot with execution-layer withdrawals.
	ShapellaSlot uint64

	PodManagerContract        common.Address
	DelegationManagerContract common.Address
	MulticallContract         common.Address

	// DefaultStrategy is the EigenLayer beacon-chain ETH strategy.
	DefaultStrategy common.Address
}

// ChunkBlocks converts the wall-clock chunk width into a block count.
func (n *NetworkConfig) ChunkBlocks(chunk time.Duration) uint64 {
	blocks := uint64(chunk/time.Second) / n.SecondsPerBlock
	if blocks == 0 {
		return 1
	}

	return blocks
}
