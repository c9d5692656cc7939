package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// MulticallABI is the Multicall3 aggregate3 entry point.
const MulticallABI = `[
	{
		"type": "function",
		"name": "aggregate3",
		"inputs": [
			{
				"name": "calls",
				"type": "tuple[]",
				"components": [
					{"name": "target", "type": "address"},
					{"name": "allowFailure", "type": "bool"},
					{"name": "callData", "type": "bytes"}
				]
			}
		],
		"outputs": [
			{
				"name": "returnData",
				"type": "tuple[]",
				"components": [
					{"name": "success", "type": "bool"},
					{"name": "returnData", "type": "bytes"}
				]
			}
		],
		"stateMutability": "payable"
	}
]`

type multicallCallArg struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Multicall encodes a cycle's call batch into one aggregate3 payload for the
// submission layer. It never sends anything.
type Multicall struct {
	address common.Address
	abi     abi.ABI
}

// NewMulticall creates a multicall encoder.
func NewMulticall(address common.Address) (*Multicall, error) {
	parsedABI, err := abi.JSON(strings.NewReader(MulticallABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Multicall ABI: %w", err)
	}

	return &Multicall{address: address, abi: parsedABI}, nil
}

// Address returns the multicall contract address.
func (c *Multicall) Address() common.Address {
	return c.address
}

// AggregateCalldata packs the batch into aggregate3 calldata, preserving
// call order. Individual call failures are not tolerated.
func (c *Multicall) AggregateCalldata(calls []*withdrawals.Call) (hexutil.Bytes, error) {
	args := make([]multicallCallArg, 0, len(calls))
	for _, call := range calls {
		args = append(args, multicallCallArg{
			Target:   call.Target,
			CallData: call.Data,
		})
	}

	data, err := c.abi.Pack("aggregate3", args)
	if err != nil {
		return nil, fmt.Errorf("failed to pack aggregate3: %w", err)
	}

	return data, nil
}
