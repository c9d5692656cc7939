package withdrawals

import (
	"context"
	"fmt"
	"math/big"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// fakePods serves pod state from maps. Presence in a block map doubles as the
// found flag.
type fakePods struct {
	fullBlocks    map[common.Address]uint64
	partialBlocks map[common.Address]uint64
	infos         map[phase0.BLSPubKey]*ValidatorInfo
	routers       map[common.Address]common.Address

	eventCalls int
}

func (f *fakePods) LastFullWithdrawalRedeemedBlock(_ context.Context, pod common.Address, _, _ uint64) (uint64, bool, error) {
	f.eventCalls++
	block, ok := f.fullBlocks[pod]

	return block, ok, nil
}

func (f *fakePods) LastPartialWithdrawalRedeemedBlock(_ context.Context, pod common.Address, _, _ uint64) (uint64, bool, error) {
	f.eventCalls++
	block, ok := f.partialBlocks[pod]

	return block, ok, nil
}

func (f *fakePods) ValidatorInfo(_ context.Context, _ common.Address, pubkey phase0.BLSPubKey, _ uint64) (*ValidatorInfo, error) {
	info, ok := f.infos[pubkey]
	if !ok {
		return nil, fmt.Errorf("no validator info for %x", pubkey[:4])
	}

	return info, nil
}

func (f *fakePods) DelayedWithdrawalRouter(_ context.Context, pod common.Address, _ uint64) (common.Address, error) {
	return f.routers[pod], nil
}

type fakeDelegation struct {
	queued        []*QueuedWithdrawal
	undelegated   map[uint64]struct{}
	minDelay      uint64
	strategyDelay uint64

	queuedFrom, queuedTo uint64
}

func (f *fakeDelegation) WithdrawalQueuedEvents(_ context.Context, from, to uint64) ([]*QueuedWithdrawal, error) {
	f.queuedFrom, f.queuedTo = from, to

	return f.queued, nil
}

func (f *fakeDelegation) StakerUndelegatedBlocks(_ context.Context, _, _ uint64) (map[uint64]struct{}, error) {
	if f.undelegated == nil {
		return map[uint64]struct{}{}, nil
	}

	return f.undelegated, nil
}

func (f *fakeDelegation) MinWithdrawalDelayBlocks(_ context.Context, _ uint64) (uint64, error) {
	return f.minDelay, nil
}

func (f *fakeDelegation) StrategyWithdrawalDelayBlocks(_ context.Context, _ common.Address, _ uint64) (uint64, error) {
	return f.strategyDelay, nil
}

type fakePodManager struct {
	shares map[common.Address]*big.Int
}

func (f *fakePodManager) PodShares(_ context.Context, owner common.Address, _ uint64) (*big.Int, error) {
	if shares, ok := f.shares[owner]; ok {
		return new(big.Int).Set(shares), nil
	}

	return new(big.Int), nil
}

type fakeRouter struct {
	claimable map[common.Address][]*DelayedWithdrawal
}

func (f *fakeRouter) ClaimableDelayedWithdrawals(_ context.Context, _, recipient common.Address, _ uint64) ([]*DelayedWithdrawal, error) {
	return f.claimable[recipient], nil
}

// fakeFetcher serves withdrawals by block range and records every requested
// range.
type fakeFetcher struct {
	withdrawals []*Withdrawal
	ranges      [][2]uint64
}

func (f *fakeFetcher) ValidatorWithdrawals(_ context.Context, indexes map[uint64]struct{}, from, to uint64) ([]*Withdrawal, error) {
	f.ranges = append(f.ranges, [2]uint64{from, to})

	var out []*Withdrawal

	for _, w := range f.withdrawals {
		if w.BlockNumber < from || w.BlockNumber > to {
			continue
		}

		if _, ok := indexes[w.ValidatorIndex]; !ok {
			continue
		}

		out = append(out, w)
	}

	return out, nil
}

type fakeBalances struct {
	balances map[common.Address]*big.Int
	reads    int
}

func (f *fakeBalances) Balance(_ context.Context, addr common.Address, _ uint64) (*big.Int, error) {
	f.reads++

	if balance, ok := f.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}

	return new(big.Int), nil
}

type fakeSlots struct {
	slots map[uint64]phase0.Slot
}

func (f *fakeSlots) SlotForBlock(_ context.Context, blockNumber uint64) (phase0.Slot, error) {
	slot, ok := f.slots[blockNumber]
	if !ok {
		return 0, fmt.Errorf("no slot for block %d", blockNumber)
	}

	return slot, nil
}

// fakeProofs records generate/release/close operations in order so tests can
// assert artifact lifecycle.
type fakeProofs struct {
	events []string
	closed bool
	err    error
}

func (f *fakeProofs) GenerateWithdrawalProof(_ context.Context, slot phase0.Slot, validatorIndex, withdrawalIndex uint64) (*ProofBundle, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.events = append(f.events, fmt.Sprintf("generate:%d", slot))

	return &ProofBundle{
		Slot:            slot,
		ValidatorIndex:  validatorIndex,
		WithdrawalIndex: withdrawalIndex,
	}, nil
}

func (f *fakeProofs) ReleaseSlot(slot phase0.Slot) {
	f.events = append(f.events, fmt.Sprintf("release:%d", slot))
}

func (f *fakeProofs) Close() {
	f.closed = true
}

func (f *fakeProofs) releases() map[string]int {
	counts := make(map[string]int)

	for _, event := range f.events {
		if len(event) > 8 && event[:8] == "release:" {
			counts[event[8:]]++
		}
	}

	return counts
}

type fakeStore struct {
	blocks map[CheckpointKind]uint64
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: make(map[CheckpointKind]uint64)}
}

func (f *fakeStore) LastProcessedBlock(kind CheckpointKind) (uint64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}

	block, ok := f.blocks[kind]

	return block, ok, nil
}

func (f *fakeStore) SetLastProcessedBlock(kind CheckpointKind, blockNumber uint64) error {
	if f.err != nil {
		return f.err
	}

	if current, ok := f.blocks[kind]; !ok || blockNumber > current {
		f.blocks[kind] = blockNumber
	}

	return nil
}

// encodedCall captures one encoder invocation; fakeEncoder returns calls
// whose targets are the owner so tests can match them back.
type encodedCall struct {
	kind            string
	owner           common.Address
	proof           *ProofBundle
	maxNumber       uint64
	shares          *big.Int
	delegatedTo     common.Address
	nonce           *big.Int
	startBlock      uint64
	receiveAsTokens bool
}

type fakeEncoder struct {
	calls []encodedCall
}

func (f *fakeEncoder) VerifyAndProcessWithdrawalsCall(owner common.Address, proof *ProofBundle) (*Call, error) {
	f.calls = append(f.calls, encodedCall{kind: "verify", owner: owner, proof: proof})

	return &Call{Target: owner, Data: []byte("verify")}, nil
}

func (f *fakeEncoder) ClaimDelayedWithdrawalsCall(owner common.Address, maxNumber uint64) (*Call, error) {
	f.calls = append(f.calls, encodedCall{kind: "claim", owner: owner, maxNumber: maxNumber})

	return &Call{Target: owner, Payable: true, Data: []byte("claim")}, nil
}

func (f *fakeEncoder) QueueWithdrawalCall(owner common.Address, shares *big.Int) (*Call, error) {
	f.calls = append(f.calls, encodedCall{kind: "queue", owner: owner, shares: new(big.Int).Set(shares)})

	return &Call{Target: owner, Data: []byte("queue")}, nil
}

func (f *fakeEncoder) CompleteQueuedWithdrawalCall(owner, delegatedTo common.Address, nonce, shares *big.Int, startBlock uint64, receiveAsTokens bool) (*Call, error) {
	f.calls = append(f.calls, encodedCall{
		kind:            "complete",
		owner:           owner,
		delegatedTo:     delegatedTo,
		nonce:           nonce,
		shares:          shares,
		startBlock:      startBlock,
		receiveAsTokens: receiveAsTokens,
	})

	return &Call{Target: owner, Payable: receiveAsTokens, Data: []byte("complete")}, nil
}

func (f *fakeEncoder) byKind(kind string) []encodedCall {
	var out []encodedCall

	for _, call := range f.calls {
		if call.kind == kind {
			out = append(out, call)
		}
	}

	return out
}

type fakeSnapshot struct {
	blockNumber uint64
	validators  []*Validator
	podOwners   PodOwnerMap
	oracleSlot  phase0.Slot
}

func (f *fakeSnapshot) TargetBlock(_ context.Context) (uint64, error) {
	return f.blockNumber, nil
}

func (f *fakeSnapshot) VaultValidators(_ context.Context, _ uint64) ([]*Validator, error) {
	return f.validators, nil
}

func (f *fakeSnapshot) PodOwners(_ context.Context, _ uint64) (PodOwnerMap, error) {
	return f.podOwners, nil
}

func (f *fakeSnapshot) BeaconOracleSlot(_ context.Context, _ uint64) (phase0.Slot, error) {
	return f.oracleSlot, nil
}
