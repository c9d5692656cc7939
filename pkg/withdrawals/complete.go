package withdrawals

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// CompleteProcessor turns eligible queued withdrawals into completion calls.
// It tracks its progress through the completed-withdrawals checkpoint but
// never writes it: the highest start block among emitted completions is
// returned as a checkpoint candidate for the caller to persist once the full
// batch has been assembled.
type CompleteProcessor struct {
	podOwners   PodOwnerMap
	blockNumber uint64

	genesisBlock    uint64
	defaultStrategy common.Address

	delegation  DelegationManager
	balances    BalanceReader
	encoder     OwnerEncoder
	checkpoints CheckpointStore

	log logrus.FieldLogger
}

// NewCompleteProcessor creates a queued-withdrawal completion processor.
func NewCompleteProcessor(
	podOwners PodOwnerMap,
	blockNumber uint64,
	genesisBlock uint64,
	defaultStrategy common.Address,
	delegation DelegationManager,
	balances BalanceReader,
	encoder OwnerEncoder,
	checkpoints CheckpointStore,
	log logrus.FieldLogger,
) *CompleteProcessor {
	return &CompleteProcessor{
		podOwners:       podOwners,
		blockNumber:     blockNumber,
		genesisBlock:    genesisBlock,
		defaultStrategy: defaultStrategy,
		delegation:      delegation,
		balances:        balances,
		encoder:         encoder,
		checkpoints:     checkpoints,
		log:             log.WithField("component", "complete-processor"),
	}
}

// Process evaluates every queued withdrawal since the checkpoint and emits
// completion calls for the eligible ones. The returned block is the highest
// start block among emitted completions; the bool reports whether anything
// was emitted.
func (p *CompleteProcessor) Process(ctx context.Context) ([]*Call, uint64, bool, error) {
	fromBlock, err := p.startBlock()
	if err != nil {
		return nil, 0, false, err
	}

	queued, err := p.delegation.WithdrawalQueuedEvents(ctx, fromBlock, p.blockNumber)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch withdrawal queued events: %w", err)
	}

	withdrawalsPerPod := make(map[common.Address][]*QueuedWithdrawal)

	for _, withdrawal := range queued {
		if _, ok := p.podOwners[withdrawal.Withdrawer]; ok {
			withdrawalsPerPod[withdrawal.Withdrawer] = append(withdrawalsPerPod[withdrawal.Withdrawer], withdrawal)
		}
	}

	delayBlocks, err := p.withdrawalsDelayBlocks(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	undelegatedBlocks, err := p.delegation.StakerUndelegatedBlocks(ctx, fromBlock, p.blockNumber)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch undelegation events: %w", err)
	}

	var (
		calls     []*Call
		lastBlock uint64
		emitted   bool
	)

	for _, pod := range p.podOwners.SortedPods() {
		for _, withdrawal := range withdrawalsPerPod[pod] {
			if len(withdrawal.Shares) == 0 {
				p.log.WithFields(logrus.Fields{
					"pod":         pod.Hex(),
					"start_block": withdrawal.StartBlock,
				}).Warn("Skipping queued withdrawal with no share amounts")

				continue
			}

			// Undelegations are correlated by exact block-number match: an
			// undelegation in the same block as the queueing event is
			// treated as its cause.
			if _, ok := undelegatedBlocks[withdrawal.BlockNumber]; ok {
				withdrawal.Undelegation = true
			}

			if p.blockNumber < withdrawal.StartBlock+delayBlocks {
				continue
			}

			receiveAsTokens := !withdrawal.Undelegation

			if receiveAsTokens {
				balance, err := p.balances.Balance(ctx, pod, p.blockNumber)
				if err != nil {
					return nil, 0, false, fmt.Errorf("failed to read balance of pod %s: %w", pod.Hex(), err)
				}

				if balance.Cmp(withdrawal.TotalShares()) < 0 {
					p.log.WithFields(logrus.Fields{
						"pod":         pod.Hex(),
						"start_block": withdrawal.StartBlock,
						"shares":      withdrawal.TotalShares().String(),
						"balance":     balance.String(),
					}).Info("Pod balance insufficient for completion, deferring to next cycle")

					continue
				}
			}

			call, err := p.encoder.CompleteQueuedWithdrawalCall(
				p.podOwners[pod],
				withdrawal.DelegatedTo,
				withdrawal.Nonce,
				withdrawal.Shares[0],
				withdrawal.StartBlock,
				receiveAsTokens,
			)
			if err != nil {
				return nil, 0, false, fmt.Errorf("failed to encode completion call: %w", err)
			}

			calls = append(calls, call)

			if !emitted || withdrawal.StartBlock > lastBlock {
				lastBlock, emitted = withdrawal.StartBlock, true
			}
		}
	}

	return calls, lastBlock, emitted, nil
}

func (p *CompleteProcessor) withdrawalsDelayBlocks(ctx context.Context) (uint64, error) {
	minDelay, err := p.delegation.MinWithdrawalDelayBlocks(ctx, p.blockNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to read min withdrawal delay: %w", err)
	}

	strategyDelay, err := p.delegation.StrategyWithdrawalDelayBlocks(ctx, p.defaultStrategy, p.blockNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to read strategy withdrawal delay: %w", err)
	}

	if strategyDelay > minDelay {
		return strategyDelay, nil
	}

	return minDelay, nil
}

func (p *CompleteProcessor) startBlock() (uint64, error) {
	checkpoint, ok, err := p.checkpoints.LastProcessedBlock(CheckpointCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to read completed checkpoint: %w", err)
	}

	if ok {
		return checkpoint, nil
	}

	return p.genesisBlock, nil
}
