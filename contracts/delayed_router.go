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

// DelayedWithdrawalRouterABI covers the claimable-withdrawals read of
// IDelayedWithdrawalRouter.
const DelayedWithdrawalRouterABI = `[
	{
		"type": "function",
		"name": "getClaimableUserDelayedWithdrawals",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [
			{
				"name": "",
				"type": "tuple[]",
				"components": [
					{"name": "amount", "type": "uint224"},
					{"name": "blockCreated", "type": "uint32"}
				]
			}
		],
		"stateMutability": "view"
	}
]`

type delayedWithdrawalRecord struct {
	Amount       *big.Int
	BlockCreated uint32
}

// DelayedWithdrawalRouter binds all router contracts through one parsed ABI;
// the router address is supplied per call since each pod resolves its own.
type DelayedWithdrawalRouter struct {
	abi     abi.ABI
	backend Backend
}

// NewDelayedWithdrawalRouter creates a router binding.
func NewDelayedWithdrawalRouter(backend Backend) (*DelayedWithdrawalRouter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(DelayedWithdrawalRouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DelayedWithdrawalRouter ABI: %w", err)
	}

	return &DelayedWithdrawalRouter{abi: parsedABI, backend: backend}, nil
}

// ClaimableDelayedWithdrawals reads a recipient's currently claimable
// delayed withdrawals at the given block.
func (c *DelayedWithdrawalRouter) ClaimableDelayedWithdrawals(
	ctx context.Context,
	router, recipient common.Address,
	atBlock uint64,
) ([]*withdrawals.DelayedWithdrawal, error) {
	out, err := callAt(ctx, c.backend, c.abi, router, atBlock, "getClaimableUserDelayedWithdrawals", recipient)
	if err != nil {
		return nil, err
	}

	records := *abi.ConvertType(out[0], new([]delayedWithdrawalRecord)).(*[]delayedWithdrawalRecord)

	claimable := make([]*withdrawals.DelayedWithdrawal, 0, len(records))
	for _, record := range records {
		claimable = append(claimable, &withdrawals.DelayedWithdrawal{
			Amount:       record.Amount,
			BlockCreated: uint64(record.BlockCreated),
		})
	}

	return claimable, nil
}
