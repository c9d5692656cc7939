package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

func newPodOwner(t *testing.T) *PodOwner {
	t.Helper()

	encoder, err := NewPodOwner()
	require.NoError(t, err)

	return encoder
}

func TestPodOwner_ClaimDelayedWithdrawalsCall(t *testing.T) {
	encoder := newPodOwner(t)
	owner := common.HexToAddress("0xa1")

	call, err := encoder.ClaimDelayedWithdrawalsCall(owner, 3)
	require.NoError(t, err)
	require.Equal(t, owner, call.Target)
	require.True(t, call.Payable)

	method, args := unpackCall(t, encoder.abi, call.Data)
	require.Equal(t, "claimDelayedWithdrawals", method)
	require.Equal(t, big.NewInt(3), args[0])
}

func TestPodOwner_QueueWithdrawalCall(t *testing.T) {
	encoder := newPodOwner(t)
	owner := common.HexToAddress("0xa2")
	shares, ok := new(big.Int).SetString("35000000000000000000", 10)
	require.True(t, ok)

	call, err := encoder.QueueWithdrawalCall(owner, shares)
	require.NoError(t, err)
	require.Equal(t, owner, call.Target)
	require.False(t, call.Payable)

	method, args := unpackCall(t, encoder.abi, call.Data)
	require.Equal(t, "queueWithdrawal", method)
	require.Equal(t, shares, args[0])
}

func TestPodOwner_CompleteQueuedWithdrawalCall(t *testing.T) {
	// Token completions are payable, share completions are not.
	encoder := newPodOwner(t)
	owner := common.HexToAddress("0xa3")
	delegatedTo := common.HexToAddress("0xd7")

	call, err := encoder.CompleteQueuedWithdrawalCall(
		owner, delegatedTo, big.NewInt(7), big.NewInt(5), 12345, true)
	require.NoError(t, err)
	require.True(t, call.Payable)

	method, args := unpackCall(t, encoder.abi, call.Data)
	require.Equal(t, "completeQueuedWithdrawal", method)
	require.Equal(t, delegatedTo, args[0])
	require.Equal(t, big.NewInt(7), args[1])
	require.Equal(t, big.NewInt(5), args[2])
	require.Equal(t, uint32(12345), args[3])
	require.Equal(t, true, args[4])

	call, err = encoder.CompleteQueuedWithdrawalCall(
		owner, delegatedTo, big.NewInt(7), big.NewInt(5), 12345, false)
	require.NoError(t, err)
	require.False(t, call.Payable)
}

func TestPodOwner_VerifyAndProcessWithdrawalsCall(t *testing.T) {
	encoder := newPodOwner(t)
	owner := common.HexToAddress("0xa4")

	bundle := &withdrawals.ProofBundle{
		OracleTimestamp:        1_700_000_000,
		BeaconStateRoot:        [32]byte{1},
		StateRootProof:         make([]byte, 64),
		WithdrawalProof:        make([]byte, 32),
		SlotProof:              make([]byte, 32),
		ExecutionPayloadProof:  make([]byte, 32),
		TimestampProof:         make([]byte, 32),
		HistoricalSummaryProof: make([]byte, 32),
		BlockRootIndex:         100,
		HistoricalSummaryIndex: 2,
		WithdrawalIndex:        1,
		WithdrawalFields:       [][32]byte{{2}, {3}},
		ValidatorFields:        [][32]byte{{4}},
		ValidatorFieldsProof:   make([]byte, 32),
	}

	call, err := encoder.VerifyAndProcessWithdrawalsCall(owner, bundle)
	require.NoError(t, err)
	require.Equal(t, owner, call.Target)
	require.False(t, call.Payable)

	method, args := unpackCall(t, encoder.abi, call.Data)
	require.Equal(t, "verifyAndProcessWithdrawals", method)
	require.Equal(t, uint64(1_700_000_000), args[0])
	require.Len(t, args, 5)
}

func TestMulticall_AggregateCalldata(t *testing.T) {
	address := common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

	multicall, err := NewMulticall(address)
	require.NoError(t, err)
	require.Equal(t, address, multicall.Address())

	calls := []*withdrawals.Call{
		{Target: common.HexToAddress("0x01"), Data: []byte{0xaa}},
		{Target: common.HexToAddress("0x02"), Data: []byte{0xbb}, Payable: true},
	}

	calldata, err := multicall.AggregateCalldata(calls)
	require.NoError(t, err)

	method, args := unpackCall(t, multicall.abi, calldata)
	require.Equal(t, "aggregate3", method)
	require.Len(t, args, 1)
}

// unpackCall resolves the method from the calldata selector and unpacks the
// arguments.
func unpackCall(t *testing.T, parsed abi.ABI, data []byte) (string, []interface{}) {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 4)

	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)

	return method.Name, args
}
