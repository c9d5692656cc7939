package withdrawals

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sirupsen/logrus"
)

// FullPartialProcessor turns full and partial validator withdrawals into
// verify-and-process-withdrawals calls against each pod's owner contract.
type FullPartialProcessor struct {
	podOwners   PodOwnerMap
	blockNumber uint64

	genesisBlock uint64
	chunkBlocks  uint64

	pods        PodContract
	fetcher     WithdrawalFetcher
	slots       SlotResolver
	proofs      ProofService
	encoder     OwnerEncoder
	checkpoints CheckpointStore

	log logrus.FieldLogger
}

// NewFullPartialProcessor creates a full/partial withdrawal processor bound
// to one cycle's pod owner map and target block.
func NewFullPartialProcessor(
	podOwners PodOwnerMap,
	blockNumber uint64,
	genesisBlock uint64,
	chunkBlocks uint64,
	pods PodContract,
	fetcher WithdrawalFetcher,
	slots SlotResolver,
	proofs ProofService,
	encoder OwnerEncoder,
	checkpoints CheckpointStore,
	log logrus.FieldLogger,
) *FullPartialProcessor {
	if chunkBlocks == 0 {
		chunkBlocks = 1
	}

	return &FullPartialProcessor{
		podOwners:    podOwners,
		blockNumber:  blockNumber,
		genesisBlock: genesisBlock,
		chunkBlocks:  chunkBlocks,
		pods:         pods,
		fetcher:      fetcher,
		slots:        slots,
		proofs:       proofs,
		encoder:      encoder,
		checkpoints:  checkpoints,
		log:          log.WithField("component", "full-partial-processor"),
	}
}

// Process emits one verify-and-process-withdrawals call per validator
// withdrawal found between the scan lower bound and the target block. An
// empty validator set returns nil without touching any collaborator.
func (p *FullPartialProcessor) Process(ctx context.Context, validators []*Validator, oracleSlot phase0.Slot) ([]*Call, error) {
	if len(validators) == 0 {
		return nil, nil
	}

	fromBlock, err := p.startBlock(ctx)
	if err != nil {
		return nil, err
	}

	indexes := make(map[uint64]struct{}, len(validators))
	for _, val := range validators {
		indexes[val.Index] = struct{}{}
	}

	withdrawals, err := p.fetchWithdrawals(ctx, indexes, fromBlock)
	if err != nil {
		return nil, err
	}

	if len(withdrawals) == 0 {
		return nil, nil
	}

	p.log.WithFields(logrus.Fields{
		"withdrawals": len(withdrawals),
		"from_block":  fromBlock,
		"to_block":    p.blockNumber,
		"oracle_slot": oracleSlot,
	}).Info("Proving validator withdrawals")

	return p.buildCalls(ctx, withdrawals)
}

// fetchWithdrawals scans [fromBlock, target] in fixed-size chunks. The chunk
// width bounds each query regardless of chain speed; chunks are contiguous
// and non-overlapping.
func (p *FullPartialProcessor) fetchWithdrawals(
	ctx context.Context,
	indexes map[uint64]struct{},
	fromBlock uint64,
) ([]*Withdrawal, error) {
	var withdrawals []*Withdrawal

	for start := fromBlock; start <= p.blockNumber; start += p.chunkBlocks {
		end := start + p.chunkBlocks - 1
		if end > p.blockNumber {
			end = p.blockNumber
		}

		chunk, err := p.fetcher.ValidatorWithdrawals(ctx, indexes, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch withdrawals for blocks %d-%d: %w", start, end, err)
		}

		withdrawals = append(withdrawals, chunk...)
	}

	return withdrawals, nil
}

func (p *FullPartialProcessor) buildCalls(ctx context.Context, withdrawals []*Withdrawal) ([]*Call, error) {
	calls := make([]*Call, 0, len(withdrawals))

	var lastSlot phase0.Slot

	haveLast := false

	// Proof artifacts are scoped to one slot at a time; the final slot is
	// released here on every exit path.
	defer func() {
		if haveLast {
			p.proofs.ReleaseSlot(lastSlot)
		}
	}()

	for _, withdrawal := range withdrawals {
		slot, err := p.slots.SlotForBlock(ctx, withdrawal.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve slot for block %d: %w", withdrawal.BlockNumber, err)
		}

		withdrawal.Slot = slot

		if haveLast && slot != lastSlot {
			p.proofs.ReleaseSlot(lastSlot)
			haveLast = false
		}

		owner, ok := p.podOwners[withdrawal.Address]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPod, withdrawal.Address.Hex())
		}

		bundle, err := p.proofs.GenerateWithdrawalProof(ctx, slot, withdrawal.ValidatorIndex, withdrawal.Index)
		if err != nil {
			return nil, fmt.Errorf("failed to generate proof for validator %d withdrawal %d: %w",
				withdrawal.ValidatorIndex, withdrawal.Index, err)
		}

		lastSlot, haveLast = slot, true

		call, err := p.encoder.VerifyAndProcessWithdrawalsCall(owner, bundle)
		if err != nil {
			return nil, fmt.Errorf("failed to encode verify withdrawals call: %w", err)
		}

		calls = append(calls, call)
	}

	return calls, nil
}

// startBlock derives the scan lower bound: the partial checkpoint when one
// exists, otherwise the newest withdrawal-redeemed event across all pods.
func (p *FullPartialProcessor) startBlock(ctx context.Context) (uint64, error) {
	checkpoint, ok, err := p.checkpoints.LastProcessedBlock(CheckpointPartial)
	if err != nil {
		return 0, fmt.Errorf("failed to read partial checkpoint: %w", err)
	}

	if ok {
		return checkpoint + 1, nil
	}

	var best uint64

	found := false

	for _, pod := range p.podOwners.SortedPods() {
		fullBlock, ok, err := p.pods.LastFullWithdrawalRedeemedBlock(ctx, pod, p.genesisBlock, p.blockNumber)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch full withdrawal redeemed events for pod %s: %w", pod.Hex(), err)
		}

		if ok && (!found || fullBlock > best) {
			best, found = fullBlock, true
		}

		partialBlock, ok, err := p.pods.LastPartialWithdrawalRedeemedBlock(ctx, pod, p.genesisBlock, p.blockNumber)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch partial withdrawal redeemed events for pod %s: %w", pod.Hex(), err)
		}

		if ok && (!found || partialBlock > best) {
			best, found = partialBlock, true
		}
	}

	if !found {
		return 0, ErrNoWithdrawalHistory
	}

	return best, nil
}
