package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// RestakeVaultABI covers the registration events withdrawoor scans on the
// restaking vault: validator registrations and EigenPod creations.
const RestakeVaultABI = `[
	{
		"type": "event",
		"name": "ValidatorRegistered",
		"inputs": [
			{"name": "publicKey", "type": "bytes", "indexed": false}
		],
		"anonymous": false
	},
	{
		"type": "event",
		"name": "EigenPodCreated",
		"inputs": [
			{"name": "eigenPod", "type": "address", "indexed": false},
			{"name": "eigenPodOwner", "type": "address", "indexed": false}
		],
		"anonymous": false
	}
]`

// RestakeVault binds the restaking vault contract.
type RestakeVault struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// NewRestakeVault creates a restaking vault binding.
func NewRestakeVault(address common.Address, backend Backend) (*RestakeVault, error) {
	parsedABI, err := abi.JSON(strings.NewReader(RestakeVaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RestakeVault ABI: %w", err)
	}

	return &RestakeVault{address: address, abi: parsedABI, backend: backend}, nil
}

// RegisteredValidatorPubkeys returns the public keys of all validators the
// vault registered in [from, to], in registration order.
func (c *RestakeVault) RegisteredValidatorPubkeys(ctx context.Context, from, to uint64) ([][]byte, error) {
	logs, err := filterRange(ctx, c.backend, c.address, from, to, c.abi.Events["ValidatorRegistered"].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ValidatorRegistered events: %w", err)
	}

	pubkeys := make([][]byte, 0, len(logs))

	for _, log := range logs {
		out, err := c.abi.Unpack("ValidatorRegistered", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ValidatorRegistered event: %w", err)
		}

		pubkeys = append(pubkeys, *abi.ConvertType(out[0], new([]byte)).(*[]byte))
	}

	return pubkeys, nil
}

// EigenPodOwners returns the pod to owner mapping derived from all
// EigenPodCreated events in [from, to].
func (c *RestakeVault) EigenPodOwners(ctx context.Context, from, to uint64) (withdrawals.PodOwnerMap, error) {
	logs, err := filterRange(ctx, c.backend, c.address, from, to, c.abi.Events["EigenPodCreated"].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch EigenPodCreated events: %w", err)
	}

	owners := make(withdrawals.PodOwnerMap, len(logs))

	for _, log := range logs {
		out, err := c.abi.Unpack("EigenPodCreated", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode EigenPodCreated event: %w", err)
		}

		pod := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
		owner := *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
		owners[pod] = owner
	}

	return owners, nil
}
