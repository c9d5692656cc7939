package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// PodOwnerABI covers the four withdrawal-related calls of the EigenPodOwner
// contract. Calls are encoded only; submission belongs to the caller.
const PodOwnerABI = `[
	{
		"type": "function",
		"name": "verifyAndProcessWithdrawals",
		"inputs": [
			{"name": "oracleTimestamp", "type": "uint64"},
			{
				"name": "stateRootProof",
				"type": "tuple",
				"components": [
					{"name": "beaconStateRoot", "type": "bytes32"},
					{"name": "proof", "type": "bytes"}
				]
			},
			{
				"name": "withdrawalProofs",
				"type": "tuple[]",
				"components": [
					{"name": "withdrawalProof", "type": "bytes"},
					{"name": "slotProof", "type": "bytes"},
					{"name": "executionPayloadProof", "type": "bytes"},
					{"name": "timestampProof", "type": "bytes"},
					{"name": "historicalSummaryBlockRootProof", "type": "bytes"},
					{"name": "blockRootIndex", "type": "uint64"},
					{"name": "historicalSummaryIndex", "type": "uint64"},
					{"name": "withdrawalIndex", "type": "uint64"},
					{"name": "blockRoot", "type": "bytes32"},
					{"name": "slotRoot", "type": "bytes32"},
					{"name": "timestampRoot", "type": "bytes32"},
					{"name": "executionPayloadRoot", "type": "bytes32"}
				]
			},
			{"name": "validatorFieldsProofs", "type": "bytes[]"},
			{"name": "validatorFields", "type": "bytes32[][]"},
			{"name": "withdrawalFields", "type": "bytes32[][]"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "claimDelayedWithdrawals",
		"inputs": [{"name": "maxNumberOfDelayedWithdrawalsToClaim", "type": "uint256"}],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "queueWithdrawal",
		"inputs": [{"name": "shares", "type": "uint256"}],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "completeQueuedWithdrawal",
		"inputs": [
			{"name": "delegatedTo", "type": "address"},
			{"name": "nonce", "type": "uint256"},
			{"name": "shares", "type": "uint256"},
			{"name": "startBlock", "type": "uint32"},
			{"name": "receiveAsTokens", "type": "bool"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	}
]`

type stateRootProofArg struct {
	BeaconStateRoot [32]byte
	Proof           []byte
}

type withdrawalProofArg struct {
	WithdrawalProof                 []byte
	SlotProof                       []byte
	ExecutionPayloadProof           []byte
	TimestampProof                  []byte
	HistoricalSummaryBlockRootProof []byte
	BlockRootIndex                  uint64
	HistoricalSummaryIndex          uint64
	WithdrawalIndex                 uint64
	BlockRoot                       [32]byte
	SlotRoot                        [32]byte
	TimestampRoot                   [32]byte
	ExecutionPayloadRoot            [32]byte
}

// PodOwner encodes the withdrawal-related pod owner calls into call
// descriptors.
type PodOwner struct {
	abi abi.ABI
}

// NewPodOwner creates a pod owner call encoder.
func NewPodOwner() (*PodOwner, error) {
	parsedABI, err := abi.JSON(strings.NewReader(PodOwnerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PodOwner ABI: %w", err)
	}

	return &PodOwner{abi: parsedABI}, nil
}

// VerifyAndProcessWithdrawalsCall encodes a single-withdrawal verification
// call from the proof bundle.
func (c *PodOwner) VerifyAndProcessWithdrawalsCall(owner common.Address, proof *withdrawals.ProofBundle) (*withdrawals.Call, error) {
	data, err := c.abi.Pack("verifyAndProcessWithdrawals",
		proof.OracleTimestamp,
		stateRootProofArg{
			BeaconStateRoot: proof.BeaconStateRoot,
			Proof:           proof.StateRootProof,
		},
		[]withdrawalProofArg{{
			WithdrawalProof:                 proof.WithdrawalProof,
			SlotProof:                       proof.SlotProof,
			ExecutionPayloadProof:           proof.ExecutionPayloadProof,
			TimestampProof:                  proof.TimestampProof,
			HistoricalSummaryBlockRootProof: proof.HistoricalSummaryProof,
			BlockRootIndex:                  proof.BlockRootIndex,
			HistoricalSummaryIndex:          proof.HistoricalSummaryIndex,
			WithdrawalIndex:                 proof.WithdrawalIndex,
			BlockRoot:                       proof.BlockRoot,
			SlotRoot:                        proof.SlotRoot,
			TimestampRoot:                   proof.TimestampRoot,
			ExecutionPayloadRoot:            proof.ExecutionPayloadRoot,
		}},
		[][]byte{proof.ValidatorFieldsProof},
		[][][32]byte{proof.ValidatorFields},
		[][][32]byte{proof.WithdrawalFields},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack verifyAndProcessWithdrawals: %w", err)
	}

	return &withdrawals.Call{Target: owner, Data: data}, nil
}

// ClaimDelayedWithdrawalsCall encodes a claim of up to maxNumber delayed
// withdrawals.
func (c *PodOwner) ClaimDelayedWithdrawalsCall(owner common.Address, maxNumber uint64) (*withdrawals.Call, error) {
	data, err := c.abi.Pack("claimDelayedWithdrawals", new(big.Int).SetUint64(maxNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to pack claimDelayedWithdrawals: %w", err)
	}

	// Claiming moves ether from the router into the vault.
	return &withdrawals.Call{Target: owner, Payable: true, Data: data}, nil
}

// QueueWithdrawalCall encodes a queue-withdrawal for the given share amount.
func (c *PodOwner) QueueWithdrawalCall(owner common.Address, shares *big.Int) (*withdrawals.Call, error) {
	data, err := c.abi.Pack("queueWithdrawal", shares)
	if err != nil {
		return nil, fmt.Errorf("failed to pack queueWithdrawal: %w", err)
	}

	return &withdrawals.Call{Target: owner, Data: data}, nil
}

// CompleteQueuedWithdrawalCall encodes a completion of a queued withdrawal.
func (c *PodOwner) CompleteQueuedWithdrawalCall(
	owner, delegatedTo common.Address,
	nonce, shares *big.Int,
	startBlock uint64,
	receiveAsTokens bool,
) (*withdrawals.Call, error) {
	data, err := c.abi.Pack("completeQueuedWithdrawal",
		delegatedTo, nonce, shares, uint32(startBlock), receiveAsTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to pack completeQueuedWithdrawal: %w", err)
	}

	return &withdrawals.Call{Target: owner, Payable: receiveAsTokens, Data: data}, nil
}
