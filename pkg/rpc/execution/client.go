// Package execution provides the execution layer JSON-RPC client used for
// event queries, point-in-time state reads and balance reads.
package execution

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// withdrawalsConcurrency bounds parallel per-block withdrawal fetches.
const withdrawalsConcurrency = 10

// Client wraps an execution layer JSON-RPC connection. All state reads are
// historical (pinned to a caller-supplied block).
type Client struct {
	ethClient *ethclient.Client
	rpcClient *rpc.Client
	rpcURL    string
	log       logrus.FieldLogger
}

// NewClient creates a new EL JSON-RPC client.
func NewClient(ctx context.Context, rpcURL string, log logrus.FieldLogger) (*Client, error) {
	clientLog := log.WithField("component", "el-client")

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EL RPC: %w", err)
	}

	ethClient := ethclient.NewClient(rpcClient)

	return &Client{
		ethClient: ethClient,
		rpcClient: rpcClient,
		rpcURL:    rpcURL,
		log:       clientLog,
	}, nil
}

// Close closes the RPC connections.
func (c *Client) Close() {
	if c.ethClient != nil {
		c.ethClient.Close()
	}

	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return chainID, nil
}

// CallContract performs a read-only contract call at the given block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	res, err := c.ethClient.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}

	return res, nil
}

// FilterLogs queries event logs.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.ethClient.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}

	return logs, nil
}

// Balance returns an address's native balance at the given block.
func (c *Client) Balance(ctx context.Context, address common.Address, atBlock uint64) (*big.Int, error) {
	balance, err := c.ethClient.BalanceAt(ctx, address, new(big.Int).SetUint64(atBlock))
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// HeaderByNumber returns the header for a block number.
func (c *Client) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("failed to get header: %w", err)
	}

	return header, nil
}

// ValidatorWithdrawals collects the withdrawals included in blocks
// [from, to] whose validator index is in the given set. Per-block fetches
// fan out concurrently; the result is ordered by (block, withdrawal index).
func (c *Client) ValidatorWithdrawals(
	ctx context.Context,
	indexes map[uint64]struct{},
	from, to uint64,
) ([]*withdrawals.Withdrawal, error) {
	var (
		mu     sync.Mutex
		result []*withdrawals.Withdrawal
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(withdrawalsConcurrency)

	for blockNumber := from; blockNumber <= to; blockNumber++ {
		group.Go(func() error {
			blockWithdrawals, err := c.blockWithdrawals(groupCtx, blockNumber)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			for _, withdrawal := range blockWithdrawals {
				if _, ok := indexes[withdrawal.ValidatorIndex]; ok {
					result = append(result, withdrawal)
				}
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}

		return result[i].Index < result[j].Index
	})

	return result, nil
}

func (c *Client) blockWithdrawals(ctx context.Context, blockNumber uint64) ([]*withdrawals.Withdrawal, error) {
	block, err := c.ethClient.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", blockNumber, err)
	}

	blockWithdrawals := make([]*withdrawals.Withdrawal, 0, len(block.Withdrawals()))

	for _, withdrawal := range block.Withdrawals() {
		blockWithdrawals = append(blockWithdrawals, &withdrawals.Withdrawal{
			BlockNumber:    blockNumber,
			ValidatorIndex: withdrawal.Validator,
			Index:          withdrawal.Index,
			AmountGwei:     withdrawal.Amount,
			Address:        withdrawal.Address,
		})
	}

	return blockWithdrawals, nil
}
