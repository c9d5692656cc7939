package withdrawals

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
)

// surplusThresholdWei is the minimum share surplus (pod shares minus restaked
// effective balances) before a queue-withdrawal call is emitted. Surpluses at
// or below the threshold are left alone.
var surplusThresholdWei = new(big.Int).Mul(big.NewInt(32), big.NewInt(params.Ether))

// ExitBalanceProcessor queues withdrawals for pods whose share balance
// exceeds the restaked effective balances of their active validators, which
// happens when validators exit without their stake being withdrawn yet.
type ExitBalanceProcessor struct {
	podOwners   PodOwnerMap
	blockNumber uint64

	pods       PodContract
	podManager PodManager
	encoder    OwnerEncoder

	log logrus.FieldLogger
}

// NewExitBalanceProcessor creates an exit-balance processor.
func NewExitBalanceProcessor(
	podOwners PodOwnerMap,
	blockNumber uint64,
	pods PodContract,
	podManager PodManager,
	encoder OwnerEncoder,
	log logrus.FieldLogger,
) *ExitBalanceProcessor {
	return &ExitBalanceProcessor{
		podOwners:   podOwners,
		blockNumber: blockNumber,
		pods:        pods,
		podManager:  podManager,
		encoder:     encoder,
		log:         log.WithField("component", "exit-balance-processor"),
	}
}

// Process compares each pod's shares against the summed restaked balances of
// its active validators and emits one queue-withdrawal call per pod whose
// surplus strictly exceeds the 32 ether threshold.
func (p *ExitBalanceProcessor) Process(ctx context.Context, validators []*Validator) ([]*Call, error) {
	validatorsPerPod := make(map[common.Address][]*Validator)

	for _, val := range validators {
		if !val.Status.IsActive() {
			continue
		}

		pod := val.WithdrawalAddress()
		validatorsPerPod[pod] = append(validatorsPerPod[pod], val)
	}

	var calls []*Call

	for _, pod := range p.podOwners.SortedPods() {
		owner := p.podOwners[pod]

		shares, err := p.podManager.PodShares(ctx, owner, p.blockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to read pod shares for owner %s: %w", owner.Hex(), err)
		}

		restaked := new(big.Int)

		for _, val := range validatorsPerPod[pod] {
			info, err := p.pods.ValidatorInfo(ctx, pod, val.PublicKey, p.blockNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to read validator info for %d: %w", val.Index, err)
			}

			restaked.Add(restaked, gweiToWei(info.RestakedBalanceGwei))
		}

		surplus := new(big.Int).Sub(shares, restaked)
		if surplus.Cmp(surplusThresholdWei) <= 0 {
			continue
		}

		p.log.WithFields(logrus.Fields{
			"pod":     pod.Hex(),
			"surplus": surplus.String(),
		}).Info("Queueing surplus withdrawal")

		call, err := p.encoder.QueueWithdrawalCall(owner, surplus)
		if err != nil {
			return nil, fmt.Errorf("failed to encode queue withdrawal call: %w", err)
		}

		calls = append(calls, call)
	}

	return calls, nil
}

func gweiToWei(gwei uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(params.GWei))
}
