package withdrawals

import (
	"context"
	"math/big"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// PodContract reads per-pod state and event history from EigenPod contracts.
type PodContract interface {
	// LastFullWithdrawalRedeemedBlock returns the block of the pod's most
	// recent FullWithdrawalRedeemed event in [from, to], if any.
	LastFullWithdrawalRedeemedBlock(ctx context.Context, pod common.Address, from, to uint64) (uint64, bool, error)

	// LastPartialWithdrawalRedeemedBlock returns the block of the pod's most
	// recent PartialWithdrawalRedeemed event in [from, to], if any.
	LastPartialWithdrawalRedeemedBlock(ctx context.Context, pod common.Address, from, to uint64) (uint64, bool, error)

	// ValidatorInfo reads validatorPubkeyToInfo at the given block.
	ValidatorInfo(ctx context.Context, pod common.Address, pubkey phase0.BLSPubKey, atBlock uint64) (*ValidatorInfo, error)

	// DelayedWithdrawalRouter reads the pod's router address at the given block.
	DelayedWithdrawalRouter(ctx context.Context, pod common.Address, atBlock uint64) (common.Address, error)
}

// DelegationManager reads withdrawal-queue state from the delegation manager.
type DelegationManager interface {
	WithdrawalQueuedEvents(ctx context.Context, from, to uint64) ([]*QueuedWithdrawal, error)

	// StakerUndelegatedBlocks returns the set of block numbers in [from, to]
	// containing a StakerUndelegated or StakerForceUndelegated event.
	StakerUndelegatedBlocks(ctx context.Context, from, to uint64) (map[uint64]struct{}, error)

	MinWithdrawalDelayBlocks(ctx context.Context, atBlock uint64) (uint64, error)
	StrategyWithdrawalDelayBlocks(ctx context.Context, strategy common.Address, atBlock uint64) (uint64, error)
}

// PodManager reads pod owner shares from the EigenPod manager.
type PodManager interface {
	PodShares(ctx context.Context, owner common.Address, atBlock uint64) (*big.Int, error)
}

// DelayedRouter reads claimable delayed withdrawals from a router contract.
type DelayedRouter interface {
	ClaimableDelayedWithdrawals(ctx context.Context, router, recipient common.Address, atBlock uint64) ([]*DelayedWithdrawal, error)
}

// WithdrawalFetcher lists validator withdrawals included in execution blocks.
type WithdrawalFetcher interface {
	// ValidatorWithdrawals returns the withdrawals in [from, to] whose
	// validator index is in the given set, ordered by (block, index).
	ValidatorWithdrawals(ctx context.Context, indexes map[uint64]struct{}, from, to uint64) ([]*Withdrawal, error)
}

// BalanceReader reads native balances at a block.
type BalanceReader interface {
	Balance(ctx context.Context, addr common.Address, atBlock uint64) (*big.Int, error)
}

// SlotResolver maps execution block numbers to beacon slots.
type SlotResolver interface {
	SlotForBlock(ctx context.Context, blockNumber uint64) (phase0.Slot, error)
}

// ProofService generates beacon-state withdrawal proofs. Artifacts staged for
// a slot are released with ReleaseSlot; Close releases everything and must
// run on every exit path.
type ProofService interface {
	GenerateWithdrawalProof(ctx context.Context, withdrawalSlot phase0.Slot, validatorIndex, withdrawalIndex uint64) (*ProofBundle, error)
	ReleaseSlot(slot phase0.Slot)
	Close()
}

// CheckpointStore persists the last fully processed block per withdrawal
// kind. Implementations never let a checkpoint regress.
type CheckpointStore interface {
	LastProcessedBlock(kind CheckpointKind) (uint64, bool, error)
	SetLastProcessedBlock(kind CheckpointKind, blockNumber uint64) error
}

// OwnerEncoder encodes the four pod-owner call kinds into call descriptors.
type OwnerEncoder interface {
	VerifyAndProcessWithdrawalsCall(owner common.Address, proof *ProofBundle) (*Call, error)
	ClaimDelayedWithdrawalsCall(owner common.Address, maxNumber uint64) (*Call, error)
	QueueWithdrawalCall(owner common.Address, shares *big.Int) (*Call, error)
	CompleteQueuedWithdrawalCall(owner, delegatedTo common.Address, nonce, shares *big.Int, startBlock uint64, receiveAsTokens bool) (*Call, error)
}

// SnapshotSource assembles the immutable per-cycle context: the target block,
// the vault validator set, the pod owner map and the beacon oracle slot.
type SnapshotSource interface {
	TargetBlock(ctx context.Context) (uint64, error)
	VaultValidators(ctx context.Context, atBlock uint64) ([]*Validator, error)
	PodOwners(ctx context.Context, atBlock uint64) (PodOwnerMap, error)
	BeaconOracleSlot(ctx context.Context, atBlock uint64) (phase0.Slot, error)
}
