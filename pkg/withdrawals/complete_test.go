package withdrawals

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var defaultStrategy = common.HexToAddress("0xbeaC0eeEeeeeEEeEeEEEEeeEEeEeeeEeeEEBEaC0")

func queuedWithdrawal(withdrawer common.Address, startBlock, eventBlock uint64, shares *big.Int) *QueuedWithdrawal {
	return &QueuedWithdrawal{
		Staker:      withdrawer,
		DelegatedTo: common.HexToAddress("0xd7"),
		Withdrawer:  withdrawer,
		Nonce:       big.NewInt(1),
		Strategies:  []common.Address{defaultStrategy},
		Shares:      []*big.Int{shares},
		StartBlock:  startBlock,
		BlockNumber: eventBlock,
	}
}

func newCompleteFixture(delegation *fakeDelegation, balances *fakeBalances, encoder *fakeEncoder, store *fakeStore, blockNumber uint64) (*CompleteProcessor, common.Address) {
	owner := common.HexToAddress("0xc9")

	p := NewCompleteProcessor(
		PodOwnerMap{owner: owner}, blockNumber, 10, defaultStrategy,
		delegation, balances, encoder, store, logrus.New())

	return p, owner
}

func TestCompleteProcessor_DelayBoundary(t *testing.T) {
	// Delay is the larger of the global and strategy delays. A withdrawal
	// queued at start block 100 with delay 50 is ineligible at target 149
	// and eligible at exactly 150.
	owner := common.HexToAddress("0xc9")
	delegation := &fakeDelegation{
		minDelay:      30,
		strategyDelay: 50,
		queued:        []*QueuedWithdrawal{queuedWithdrawal(owner, 100, 100, big.NewInt(5))},
	}
	balances := &fakeBalances{balances: map[common.Address]*big.Int{owner: big.NewInt(10)}}

	p, _ := newCompleteFixture(delegation, balances, &fakeEncoder{}, newFakeStore(), 149)

	calls, _, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, calls)
	require.False(t, emitted)

	p, _ = newCompleteFixture(delegation, balances, &fakeEncoder{}, newFakeStore(), 150)

	calls, lastBlock, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.True(t, emitted)
	require.Equal(t, uint64(100), lastBlock)
}

func TestCompleteProcessor_UndelegationReceivesShares(t *testing.T) {
	// A withdrawal queued in the same block as an undelegation completes as
	// shares (redelegation), skipping the balance sufficiency check.
	owner := common.HexToAddress("0xc9")
	delegation := &fakeDelegation{
		minDelay:    10,
		queued:      []*QueuedWithdrawal{queuedWithdrawal(owner, 100, 100, big.NewInt(5))},
		undelegated: map[uint64]struct{}{100: {}},
	}
	balances := &fakeBalances{}
	encoder := &fakeEncoder{}

	p, _ := newCompleteFixture(delegation, balances, encoder, newFakeStore(), 200)

	calls, _, _, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.False(t, calls[0].Payable)
	require.Zero(t, balances.reads)

	completions := encoder.byKind("complete")
	require.Len(t, completions, 1)
	require.False(t, completions[0].receiveAsTokens)
}

func TestCompleteProcessor_UnrelatedUndelegationSameBlock(t *testing.T) {
	// Undelegations are matched to queueing events purely by block number:
	// any undelegation in the withdrawal's block marks it, even one from an
	// unrelated staker. This pins down the correlation rule.
	owner := common.HexToAddress("0xc9")
	delegation := &fakeDelegation{
		minDelay: 10,
		queued:   []*QueuedWithdrawal{queuedWithdrawal(owner, 100, 123, big.NewInt(5))},
		// Some other staker undelegated in block 123.
		undelegated: map[uint64]struct{}{123: {}},
	}
	encoder := &fakeEncoder{}

	p, _ := newCompleteFixture(delegation, &fakeBalances{}, encoder, newFakeStore(), 200)

	calls, _, _, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)

	completions := encoder.byKind("complete")
	require.False(t, completions[0].receiveAsTokens)
}

func TestCompleteProcessor_InsufficientBalanceDefers(t *testing.T) {
	// A token completion needs the pod to hold at least the withdrawn
	// shares; a short pod defers the completion and leaves the checkpoint
	// candidate untouched.
	owner := common.HexToAddress("0xc9")
	delegation := &fakeDelegation{
		minDelay: 10,
		queued:   []*QueuedWithdrawal{queuedWithdrawal(owner, 100, 100, big.NewInt(500))},
	}
	balances := &fakeBalances{balances: map[common.Address]*big.Int{owner: big.NewInt(499)}}

	p, _ := newCompleteFixture(delegation, balances, &fakeEncoder{}, newFakeStore(), 200)

	calls, _, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, calls)
	require.False(t, emitted)
}

func TestCompleteProcessor_CheckpointCandidateIsMaxStartBlock(t *testing.T) {
	// Eligible start blocks {100, 150, 120} yield candidate 150 regardless
	// of event order.
	owner := common.HexToAddress("0xc9")
	delegation := &fakeDelegation{
		minDelay: 10,
		queued: []*QueuedWithdrawal{
			queuedWithdrawal(owner, 100, 100, big.NewInt(1)),
			queuedWithdrawal(owner, 150, 150, big.NewInt(1)),
			queuedWithdrawal(owner, 120, 120, big.NewInt(1)),
		},
	}
	balances := &fakeBalances{balances: map[common.Address]*big.Int{owner: big.NewInt(10)}}

	p, _ := newCompleteFixture(delegation, balances, &fakeEncoder{}, newFakeStore(), 1000)

	calls, lastBlock, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 3)
	require.True(t, emitted)
	require.Equal(t, uint64(150), lastBlock)
}

func TestCompleteProcessor_SkipsEmptyShareList(t *testing.T) {
	// A queued withdrawal carrying no share amounts cannot be completed;
	// it is skipped without advancing the checkpoint candidate.
	owner := common.HexToAddress("0xc9")
	empty := queuedWithdrawal(owner, 100, 100, nil)
	empty.Shares = nil

	delegation := &fakeDelegation{
		minDelay: 10,
		queued: []*QueuedWithdrawal{
			empty,
			queuedWithdrawal(owner, 90, 90, big.NewInt(1)),
		},
	}
	balances := &fakeBalances{balances: map[common.Address]*big.Int{owner: big.NewInt(10)}}

	p, _ := newCompleteFixture(delegation, balances, &fakeEncoder{}, newFakeStore(), 1000)

	calls, lastBlock, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.True(t, emitted)
	require.Equal(t, uint64(90), lastBlock)
}

func TestCompleteProcessor_IgnoresForeignWithdrawers(t *testing.T) {
	// Queued withdrawals whose withdrawer is not one of our pod owners are
	// someone else's business.
	stranger := common.HexToAddress("0xdead")
	delegation := &fakeDelegation{
		minDelay: 10,
		queued:   []*QueuedWithdrawal{queuedWithdrawal(stranger, 100, 100, big.NewInt(1))},
	}

	p, _ := newCompleteFixture(delegation, &fakeBalances{}, &fakeEncoder{}, newFakeStore(), 1000)

	calls, _, emitted, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, calls)
	require.False(t, emitted)
}

func TestCompleteProcessor_ScanStartsAtCheckpoint(t *testing.T) {
	// With a completed checkpoint at 500 the event scan starts there;
	// without one it starts at the keeper genesis block.
	delegation := &fakeDelegation{minDelay: 10}
	store := newFakeStore()
	require.NoError(t, store.SetLastProcessedBlock(CheckpointCompleted, 500))

	p, _ := newCompleteFixture(delegation, &fakeBalances{}, &fakeEncoder{}, store, 1000)

	_, _, _, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(500), delegation.queuedFrom)
	require.Equal(t, uint64(1000), delegation.queuedTo)

	delegation = &fakeDelegation{minDelay: 10}
	p, _ = newCompleteFixture(delegation, &fakeBalances{}, &fakeEncoder{}, newFakeStore(), 1000)

	_, _, _, err = p.Process(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(10), delegation.queuedFrom)
}
