package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BeaconChainOracleABI covers the oracle update event of IBeaconChainOracle.
const BeaconChainOracleABI = `[
	{
		"type": "event",
		"name": "EigenLayerBeaconOracleUpdate",
		"inputs": [
			{"name": "slot", "type": "uint256", "indexed": false},
			{"name": "timestamp", "type": "uint256", "indexed": false},
			{"name": "blockRoot", "type": "bytes32", "indexed": false}
		],
		"anonymous": false
	}
]`

// BeaconChainOracle binds a beacon chain oracle contract; the address is
// supplied per call since it is itself read from the pod manager.
type BeaconChainOracle struct {
	abi     abi.ABI
	backend Backend
}

// NewBeaconChainOracle creates an oracle binding.
func NewBeaconChainOracle(backend Backend) (*BeaconChainOracle, error) {
	parsedABI, err := abi.JSON(strings.NewReader(BeaconChainOracleABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse BeaconChainOracle ABI: %w", err)
	}

	return &BeaconChainOracle{abi: parsedABI, backend: backend}, nil
}

// LastUpdateSlot returns the slot of the oracle's newest update event in
// [from, to].
func (c *BeaconChainOracle) LastUpdateSlot(ctx context.Context, oracle common.Address, from, to uint64) (phase0.Slot, bool, error) {
	logs, err := filterRange(ctx, c.backend, oracle, from, to, c.abi.Events["EigenLayerBeaconOracleUpdate"].ID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch oracle update events: %w", err)
	}

	if len(logs) == 0 {
		return 0, false, nil
	}

	out, err := c.abi.Unpack("EigenLayerBeaconOracleUpdate", logs[len(logs)-1].Data)
	if err != nil {
		return 0, false, fmt.Errorf("failed to decode oracle update event: %w", err)
	}

	slot := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return phase0.Slot(slot.Uint64()), true, nil
}
