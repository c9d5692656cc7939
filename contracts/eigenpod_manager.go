package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EigenPodManagerABI covers the reads withdrawoor needs from
// IEigenPodManager.
const EigenPodManagerABI = `[
	{
		"type": "function",
		"name": "podOwnerShares",
		"inputs": [{"name": "podOwner", "type": "address"}],
		"outputs": [{"name": "", "type": "int256"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "beaconChainOracle",
		"inputs": [],
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view"
	}
]`

// EigenPodManager binds the EigenPod manager contract.
type EigenPodManager struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// NewEigenPodManager creates an EigenPod manager binding.
func NewEigenPodManager(address common.Address, backend Backend) (*EigenPodManager, error) {
	parsedABI, err := abi.JSON(strings.NewReader(EigenPodManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EigenPodManager ABI: %w", err)
	}

	return &EigenPodManager{address: address, abi: parsedABI, backend: backend}, nil
}

// PodShares reads a pod owner's share balance at the given block.
func (c *EigenPodManager) PodShares(ctx context.Context, owner common.Address, atBlock uint64) (*big.Int, error) {
	out, err := callAt(ctx, c.backend, c.abi, c.address, atBlock, "podOwnerShares", owner)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// BeaconChainOracle reads the oracle address at the given block.
func (c *EigenPodManager) BeaconChainOracle(ctx context.Context, atBlock uint64) (common.Address, error) {
	out, err := callAt(ctx, c.backend, c.abi, c.address, atBlock, "beaconChainOracle")
	if err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
