package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// DelegationManagerABI covers the withdrawal-queue surface of
// IDelegationManager.
const DelegationManagerABI = `[
	{
		"type": "event",
		"name": "WithdrawalQueued",
		"inputs": [
			{"name": "withdrawalRoot", "type": "bytes32", "indexed": false},
			{
				"name": "withdrawal",
				"type": "tuple",
				"indexed": false,
				"components": [
					{"name": "staker", "type": "address"},
					{"name": "delegatedTo", "type": "address"},
					{"name": "withdrawer", "type": "address"},
					{"name": "nonce", "type": "uint256"},
					{"name": "startBlock", "type": "uint32"},
					{"name": "strategies", "type": "address[]"},
					{"name": "shares", "type": "uint256[]"}
				]
			}
		],
		"anonymous": false
	},
	{
		"type": "event",
		"name": "StakerUndelegated",
		"inputs": [
			{"name": "staker", "type": "address", "indexed": true},
			{"name": "operator", "type": "address", "indexed": true}
		],
		"anonymous": false
	},
	{
		"type": "event",
		"name": "StakerForceUndelegated",
		"inputs": [
			{"name": "staker", "type": "address", "indexed": true},
			{"name": "operator", "type": "address", "indexed": true}
		],
		"anonymous": false
	},
	{
		"type": "function",
		"name": "minWithdrawalDelayBlocks",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "strategyWithdrawalDelayBlocks",
		"inputs": [{"name": "strategy", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	}
]`

type queuedWithdrawalRecord struct {
	Staker      common.Address
	DelegatedTo common.Address
	Withdrawer  common.Address
	Nonce       *big.Int
	StartBlock  uint32
	Strategies  []common.Address
	Shares      []*big.Int
}

// DelegationManager binds the delegation manager contract.
type DelegationManager struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// NewDelegationManager creates a delegation manager binding.
func NewDelegationManager(address common.Address, backend Backend) (*DelegationManager, error) {
	parsedABI, err := abi.JSON(strings.NewReader(DelegationManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DelegationManager ABI: %w", err)
	}

	return &DelegationManager{address: address, abi: parsedABI, backend: backend}, nil
}

// WithdrawalQueuedEvents returns the decoded WithdrawalQueued events in
// [from, to], in log order.
func (c *DelegationManager) WithdrawalQueuedEvents(ctx context.Context, from, to uint64) ([]*withdrawals.QueuedWithdrawal, error) {
	logs, err := filterRange(ctx, c.backend, c.address, from, to, c.abi.Events["WithdrawalQueued"].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch WithdrawalQueued events: %w", err)
	}

	queued := make([]*withdrawals.QueuedWithdrawal, 0, len(logs))

	for _, log := range logs {
		out, err := c.abi.Unpack("WithdrawalQueued", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode WithdrawalQueued event: %w", err)
		}

		record := *abi.ConvertType(out[1], new(queuedWithdrawalRecord)).(*queuedWithdrawalRecord)

		queued = append(queued, &withdrawals.QueuedWithdrawal{
			Staker:      record.Staker,
			DelegatedTo: record.DelegatedTo,
			Withdrawer:  record.Withdrawer,
			Nonce:       record.Nonce,
			Strategies:  record.Strategies,
			Shares:      record.Shares,
			StartBlock:  uint64(record.StartBlock),
			BlockNumber: log.BlockNumber,
		})
	}

	return queued, nil
}

// StakerUndelegatedBlocks returns the blocks in [from, to] containing a
// StakerUndelegated or StakerForceUndelegated event.
func (c *DelegationManager) StakerUndelegatedBlocks(ctx context.Context, from, to uint64) (map[uint64]struct{}, error) {
	logs, err := filterRange(ctx, c.backend, c.address, from, to,
		c.abi.Events["StakerUndelegated"].ID,
		c.abi.Events["StakerForceUndelegated"].ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch undelegation events: %w", err)
	}

	blocks := make(map[uint64]struct{}, len(logs))
	for _, log := range logs {
		blocks[log.BlockNumber] = struct{}{}
	}

	return blocks, nil
}

// MinWithdrawalDelayBlocks reads the protocol-wide minimum delay at the
// given block.
func (c *DelegationManager) MinWithdrawalDelayBlocks(ctx context.Context, atBlock uint64) (uint64, error) {
	out, err := callAt(ctx, c.backend, c.abi, c.address, atBlock, "minWithdrawalDelayBlocks")
	if err != nil {
		return 0, err
	}

	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}

// StrategyWithdrawalDelayBlocks reads a strategy's delay at the given block.
func (c *DelegationManager) StrategyWithdrawalDelayBlocks(ctx context.Context, strategy common.Address, atBlock uint64) (uint64, error) {
	out, err := callAt(ctx, c.backend, c.abi, c.address, atBlock, "strategyWithdrawalDelayBlocks", strategy)
	if err != nil {
		return 0, err
	}

	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}
