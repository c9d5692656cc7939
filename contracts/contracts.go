// Package contracts provides ABI bindings for the smart contracts withdrawoor
// interacts with: EigenPods, the EigenPod manager, the delegation manager,
// the delayed withdrawal router, the restaking vault and the pod owner
// contracts. All reads are point-in-time against a caller-supplied block.
package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of the execution client used by contract bindings.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// callAt performs a point-in-time eth_call and unpacks the outputs.
func callAt(
	ctx context.Context,
	backend Backend,
	contractABI abi.ABI,
	contract common.Address,
	atBlock uint64,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	res, err := backend.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, new(big.Int).SetUint64(atBlock))
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	out, err := contractABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}

	return out, nil
}

// filterRange queries logs for the given event signatures at one address over
// an inclusive block range.
func filterRange(
	ctx context.Context,
	backend Backend,
	contract common.Address,
	from, to uint64,
	eventIDs ...common.Hash,
) ([]types.Log, error) {
	return backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{eventIDs},
	})
}
