// Package withdrawals decides which withdrawal-related contract calls must be
// submitted for a set of EigenPods in the current processing cycle. It
// correlates validator withdrawals, withdrawal-queue events and undelegation
// events against point-in-time contract state and emits call descriptors;
// signing and broadcasting are left to the caller.
package withdrawals

import (
	"math/big"
	"sort"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PodOwnerMap maps each EigenPod address to its owner contract.
// Immutable for the duration of a cycle.
type PodOwnerMap map[common.Address]common.Address

// SortedPods returns the pod addresses in byte order so cycles produce
// deterministic call batches.
func (m PodOwnerMap) SortedPods() []common.Address {
	pods := make([]common.Address, 0, len(m))
	for pod := range m {
		pods = append(pods, pod)
	}

	sort.Slice(pods, func(i, j int) bool {
		return pods[i].Cmp(pods[j]) < 0
	})

	return pods
}

// Validator is a vault validator as seen by the beacon chain.
type Validator struct {
	Index                 uint64
	PublicKey             phase0.BLSPubKey
	Status                apiv1.ValidatorState
	WithdrawalCredentials []byte

	// Slot is assigned during processing.
	Slot phase0.Slot
}

// WithdrawalAddress extracts the execution-layer address from 0x01/0x02
// prefixed withdrawal credentials.
func (v *Validator) WithdrawalAddress() common.Address {
	if len(v.WithdrawalCredentials) != 32 {
		return common.Address{}
	}

	return common.BytesToAddress(v.WithdrawalCredentials[12:])
}

// Withdrawal is a validator withdrawal observed in an execution block.
type Withdrawal struct {
	BlockNumber    uint64
	ValidatorIndex uint64
	Index          uint64
	AmountGwei     uint64
	Address        common.Address

	// Slot is assigned during processing.
	Slot phase0.Slot
}

// QueuedWithdrawal is a WithdrawalQueued event from the delegation manager.
type QueuedWithdrawal struct {
	Staker      common.Address
	DelegatedTo common.Address
	Withdrawer  common.Address
	Nonce       *big.Int
	Strategies  []common.Address
	Shares      []*big.Int
	StartBlock  uint64

	// BlockNumber is the block the event was emitted in.
	BlockNumber uint64

	// Undelegation is set once per cycle when an undelegation event shares
	// the withdrawal's block number.
	Undelegation bool
}

// TotalShares sums the per-strategy share amounts.
func (w *QueuedWithdrawal) TotalShares() *big.Int {
	total := new(big.Int)
	for _, s := range w.Shares {
		total.Add(total, s)
	}

	return total
}

// DelayedWithdrawal is a router-enforced delayed withdrawal.
type DelayedWithdrawal struct {
	Amount       *big.Int
	BlockCreated uint64
}

// ValidatorInfo mirrors the EigenPod's validatorPubkeyToInfo record.
type ValidatorInfo struct {
	ValidatorIndex                   uint64
	RestakedBalanceGwei              uint64
	MostRecentBalanceUpdateTimestamp uint64
	Status                           uint8
}

// ProofBundle is the proof material for one (slot, validator, withdrawal)
// triple, produced by the proof service. Staged artifacts behind a bundle are
// scoped to its slot and must be released before a different slot is proven.
type ProofBundle struct {
	Slot            phase0.Slot
	ValidatorIndex  uint64
	WithdrawalIndex uint64

	OracleTimestamp uint64
	BeaconStateRoot [32]byte
	StateRootProof  []byte

	WithdrawalProof        []byte
	SlotProof              []byte
	ExecutionPayloadProof  []byte
	TimestampProof         []byte
	HistoricalSummaryProof []byte
	BlockRootIndex         uint64
	HistoricalSummaryIndex uint64
	BlockRoot              [32]byte
	SlotRoot               [32]byte
	TimestampRoot          [32]byte
	ExecutionPayloadRoot   [32]byte

	WithdrawalFields     [][32]byte
	ValidatorFields      [][32]byte
	ValidatorFieldsProof []byte
}

// Call is a pending contract call assembled by a processor. Payable marks
// calls that move ether when executed.
type Call struct {
	Target  common.Address `json:"target"`
	Payable bool           `json:"payable"`
	Data    hexutil.Bytes  `json:"data"`
}

// CheckpointKind identifies a durable last-processed-block cursor.
type CheckpointKind string

const (
	// CheckpointPartial tracks the full/partial withdrawal scan.
	CheckpointPartial CheckpointKind = "partial"

	// CheckpointCompleted tracks queued-withdrawal completions.
	CheckpointCompleted CheckpointKind = "completed"
)
