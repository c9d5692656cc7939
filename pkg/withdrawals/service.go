package withdrawals

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ProofServiceFactory opens a proof service scoped to one processing run,
// anchored at the given beacon oracle slot.
type ProofServiceFactory func(oracleSlot phase0.Slot) (ProofService, error)

// ServiceConfig carries the process-wide constants for a cycle service.
type ServiceConfig struct {
	// GenesisBlock is the scan lower bound when no event or checkpoint
	// provides one.
	GenesisBlock uint64

	// ChunkBlocks bounds the width of validator-withdrawal queries.
	ChunkBlocks uint64

	// DefaultStrategy is the beacon-chain ETH strategy whose withdrawal
	// delay participates in the completion delay computation.
	DefaultStrategy common.Address
}

// ServiceDeps are the collaborators a cycle service wires into processors.
type ServiceDeps struct {
	Snapshot    SnapshotSource
	Pods        PodContract
	Delegation  DelegationManager
	PodManager  PodManager
	Router      DelayedRouter
	Fetcher     WithdrawalFetcher
	Balances    BalanceReader
	Slots       SlotResolver
	NewProofs   ProofServiceFactory
	Encoder     OwnerEncoder
	Checkpoints CheckpointStore
}

// CycleResult is the outcome of one processing cycle: the batch of pending
// calls in processor order, and the snapshot it was computed against.
type CycleResult struct {
	BlockNumber uint64
	OracleSlot  phase0.Slot

	ExitBalanceCalls []*Call
	FullPartialCalls []*Call
	DelayedCalls     []*Call
	CompletionCalls  []*Call
}

// Calls returns the full batch in submission order.
func (r *CycleResult) Calls() []*Call {
	calls := make([]*Call, 0,
		len(r.ExitBalanceCalls)+len(r.FullPartialCalls)+len(r.DelayedCalls)+len(r.CompletionCalls))
	calls = append(calls, r.ExitBalanceCalls...)
	calls = append(calls, r.FullPartialCalls...)
	calls = append(calls, r.DelayedCalls...)
	calls = append(calls, r.CompletionCalls...)

	return calls
}

// Service runs the four withdrawal processors sequentially against one
// immutable block snapshot per cycle.
type Service struct {
	cfg  ServiceConfig
	deps ServiceDeps
	log  logrus.FieldLogger
}

// NewService creates a cycle service.
func NewService(cfg ServiceConfig, deps ServiceDeps, log logrus.FieldLogger) *Service {
	return &Service{
		cfg:  cfg,
		deps: deps,
		log:  log.WithField("component", "withdrawals-service"),
	}
}

// RunCycle assembles the per-cycle snapshot, runs every processor against it
// and returns the combined batch. The completion checkpoint is only advanced
// after the whole batch has been computed; a failing processor fails the
// cycle with no partial side effects.
func (s *Service) RunCycle(ctx context.Context) (*CycleResult, error) {
	blockNumber, err := s.deps.Snapshot.TargetBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target block: %w", err)
	}

	podOwners, err := s.deps.Snapshot.PodOwners(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pod owners: %w", err)
	}

	validators, err := s.deps.Snapshot.VaultValidators(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault validators: %w", err)
	}

	oracleSlot, err := s.deps.Snapshot.BeaconOracleSlot(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve beacon oracle slot: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"block_number": blockNumber,
		"oracle_slot":  oracleSlot,
		"pods":         len(podOwners),
		"validators":   len(validators),
	}).Info("Starting withdrawal cycle")

	result := &CycleResult{
		BlockNumber: blockNumber,
		OracleSlot:  oracleSlot,
	}

	exitProcessor := NewExitBalanceProcessor(
		podOwners, blockNumber, s.deps.Pods, s.deps.PodManager, s.deps.Encoder, s.log)

	result.ExitBalanceCalls, err = exitProcessor.Process(ctx, validators)
	if err != nil {
		return nil, fmt.Errorf("exit-balance processor failed: %w", err)
	}

	result.FullPartialCalls, err = s.runFullPartial(ctx, podOwners, blockNumber, validators, oracleSlot)
	if err != nil {
		return nil, err
	}

	delayedProcessor := NewDelayedClaimsProcessor(
		podOwners, blockNumber, s.deps.Pods, s.deps.Router, s.deps.Encoder, s.log)

	result.DelayedCalls, err = delayedProcessor.Process(ctx)
	if err != nil {
		return nil, fmt.Errorf("delayed-claims processor failed: %w", err)
	}

	completeProcessor := NewCompleteProcessor(
		podOwners, blockNumber, s.cfg.GenesisBlock, s.cfg.DefaultStrategy,
		s.deps.Delegation, s.deps.Balances, s.deps.Encoder, s.deps.Checkpoints, s.log)

	calls, completedBlock, emitted, err := completeProcessor.Process(ctx)
	if err != nil {
		return nil, fmt.Errorf("completion processor failed: %w", err)
	}

	result.CompletionCalls = calls

	if emitted {
		if err := s.deps.Checkpoints.SetLastProcessedBlock(CheckpointCompleted, completedBlock); err != nil {
			return nil, fmt.Errorf("failed to persist completion checkpoint: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"exit_balance": len(result.ExitBalanceCalls),
		"full_partial": len(result.FullPartialCalls),
		"delayed":      len(result.DelayedCalls),
		"completion":   len(result.CompletionCalls),
	}).Info("Withdrawal cycle assembled")

	return result, nil
}

func (s *Service) runFullPartial(
	ctx context.Context,
	podOwners PodOwnerMap,
	blockNumber uint64,
	validators []*Validator,
	oracleSlot phase0.Slot,
) ([]*Call, error) {
	proofs, err := s.deps.NewProofs(oracleSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to open proof service: %w", err)
	}
	defer proofs.Close()

	processor := NewFullPartialProcessor(
		podOwners, blockNumber, s.cfg.GenesisBlock, s.cfg.ChunkBlocks,
		s.deps.Pods, s.deps.Fetcher, s.deps.Slots, proofs, s.deps.Encoder,
		s.deps.Checkpoints, s.log)

	calls, err := processor.Process(ctx, validators, oracleSlot)
	if err != nil {
		return nil, fmt.Errorf("full-partial processor failed: %w", err)
	}

	return calls, nil
}
