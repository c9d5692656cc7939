package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// EigenPodABI covers the events and reads withdrawoor needs from IEigenPod.
const EigenPodABI = `[
	{
		"type": "event",
		"name": "FullWithdrawalRedeemed",
		"inputs": [
			{"name": "validatorIndex", "type": "uint40", "indexed": false},
			{"name": "withdrawalTimestamp", "type": "uint64", "indexed": false},
			{"name": "recipient", "type": "address", "indexed": true},
			{"name": "withdrawalAmountGwei", "type": "uint64", "indexed": false}
		],
		"anonymous": false
	},
	{
		"type": "event",
		"name": "PartialWithdrawalRedeemed",
		"inputs": [
			{"name": "validatorIndex", "type": "uint40", "indexed": false},
			{"name": "withdrawalTimestamp", "type": "uint64", "indexed": false},
			{"name": "recipient", "type": "address", "indexed": true},
			{"name": "partialWithdrawalAmountGwei", "type": "uint64", "indexed": false}
		],
		"anonymous": false
	},
	{
		"type": "function",
		"name": "validatorPubkeyToInfo",
		"inputs": [{"name": "validatorPubkey", "type": "bytes"}],
		"outputs": [
			{
				"name": "",
				"type": "tuple",
				"components": [
					{"name": "validatorIndex", "type": "uint64"},
					{"name": "restakedBalanceGwei", "type": "uint64"},
					{"name": "mostRecentBalanceUpdateTimestamp", "type": "uint64"},
					{"name": "status", "type": "uint8"}
				]
			}
		],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "delayedWithdrawalRouter",
		"inputs": [],
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view"
	}
]`

type eigenPodValidatorInfo struct {
	ValidatorIndex                   uint64
	RestakedBalanceGwei              uint64
	MostRecentBalanceUpdateTimestamp uint64
	Status                           uint8
}

// EigenPod binds all EigenPod contracts through one parsed ABI; the pod
// address is supplied per call.
type EigenPod struct {
	abi     abi.ABI
	backend Backend
}

// NewEigenPod creates an EigenPod binding.
func NewEigenPod(backend Backend) (*EigenPod, error) {
	parsedABI, err := abi.JSON(strings.NewReader(EigenPodABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EigenPod ABI: %w", err)
	}

	return &EigenPod{abi: parsedABI, backend: backend}, nil
}

// LastFullWithdrawalRedeemedBlock returns the block of the pod's newest
// FullWithdrawalRedeemed event in [from, to].
func (c *EigenPod) LastFullWithdrawalRedeemedBlock(ctx context.Context, pod common.Address, from, to uint64) (uint64, bool, error) {
	return c.lastEventBlock(ctx, pod, from, to, "FullWithdrawalRedeemed")
}

// LastPartialWithdrawalRedeemedBlock returns the block of the pod's newest
// PartialWithdrawalRedeemed event in [from, to].
func (c *EigenPod) LastPartialWithdrawalRedeemedBlock(ctx context.Context, pod common.Address, from, to uint64) (uint64, bool, error) {
	return c.lastEventBlock(ctx, pod, from, to, "PartialWithdrawalRedeemed")
}

func (c *EigenPod) lastEventBlock(ctx context.Context, pod common.Address, from, to uint64, event string) (uint64, bool, error) {
	logs, err := filterRange(ctx, c.backend, pod, from, to, c.abi.Events[event].ID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch %s events: %w", event, err)
	}

	if len(logs) == 0 {
		return 0, false, nil
	}

	return logs[len(logs)-1].BlockNumber, true, nil
}

// ValidatorInfo reads validatorPubkeyToInfo at the given block.
func (c *EigenPod) ValidatorInfo(ctx context.Context, pod common.Address, pubkey phase0.BLSPubKey, atBlock uint64) (*withdrawals.ValidatorInfo, error) {
	out, err := callAt(ctx, c.backend, c.abi, pod, atBlock, "validatorPubkeyToInfo", pubkey[:])
	if err != nil {
		return nil, err
	}

	info := *abi.ConvertType(out[0], new(eigenPodValidatorInfo)).(*eigenPodValidatorInfo)

	return &withdrawals.ValidatorInfo{
		ValidatorIndex:                   info.ValidatorIndex,
		RestakedBalanceGwei:              info.RestakedBalanceGwei,
		MostRecentBalanceUpdateTimestamp: info.MostRecentBalanceUpdateTimestamp,
		Status:                           info.Status,
	}, nil
}

// DelayedWithdrawalRouter reads the pod's router address at the given block.
func (c *EigenPod) DelayedWithdrawalRouter(ctx context.Context, pod common.Address, atBlock uint64) (common.Address, error) {
	out, err := callAt(ctx, c.backend, c.abi, pod, atBlock, "delayedWithdrawalRouter")
	if err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
