// Package chain assembles the immutable per-cycle snapshot: the target block,
// the vault validator set, the pod owner map and the beacon oracle slot, and
// correlates execution blocks with beacon slots.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/withdrawoor/contracts"
	"github.com/ethpandaops/withdrawoor/pkg/config"
	"github.com/ethpandaops/withdrawoor/pkg/rpc/beacon"
	"github.com/ethpandaops/withdrawoor/pkg/rpc/execution"
	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// Service resolves per-cycle chain context from the execution and consensus
// clients and the vault contracts.
type Service struct {
	el  *execution.Client
	cl  *beacon.Client
	net *config.NetworkConfig

	vault      *contracts.RestakeVault
	podManager *contracts.EigenPodManager
	oracle     *contracts.BeaconChainOracle

	genesis        *beacon.Genesis
	secondsPerSlot time.Duration

	log logrus.FieldLogger
}

// NewService creates a chain service. Genesis and the slot duration are
// fetched once at construction.
func NewService(
	ctx context.Context,
	el *execution.Client,
	cl *beacon.Client,
	net *config.NetworkConfig,
	vault *contracts.RestakeVault,
	podManager *contracts.EigenPodManager,
	oracle *contracts.BeaconChainOracle,
	log logrus.FieldLogger,
) (*Service, error) {
	genesis, err := cl.GetGenesis(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get genesis: %w", err)
	}

	secondsPerSlot, err := cl.GetSecondsPerSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot duration: %w", err)
	}

	return &Service{
		el:             el,
		cl:             cl,
		net:            net,
		vault:          vault,
		podManager:     podManager,
		oracle:         oracle,
		genesis:        genesis,
		secondsPerSlot: secondsPerSlot,
		log:            log.WithField("component", "chain-service"),
	}, nil
}

// TargetBlock returns the execution block number of the finalized beacon
// block, the snapshot every processor in a cycle reads against.
func (s *Service) TargetBlock(ctx context.Context) (uint64, error) {
	return s.cl.FinalizedBlockNumber(ctx)
}

// SlotForBlock resolves the beacon slot an execution block belongs to from
// its timestamp.
func (s *Service) SlotForBlock(ctx context.Context, blockNumber uint64) (phase0.Slot, error) {
	header, err := s.el.HeaderByNumber(ctx, blockNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to get header for block %d: %w", blockNumber, err)
	}

	blockTime := time.Unix(int64(header.Time), 0)
	if blockTime.Before(s.genesis.GenesisTime) {
		return 0, fmt.Errorf("block %d predates chain genesis", blockNumber)
	}

	return phase0.Slot(blockTime.Sub(s.genesis.GenesisTime) / s.secondsPerSlot), nil
}

// VaultValidators returns the beacon-chain view of every validator the vault
// has registered up to the given block.
func (s *Service) VaultValidators(ctx context.Context, atBlock uint64) ([]*withdrawals.Validator, error) {
	rawPubkeys, err := s.vault.RegisteredValidatorPubkeys(ctx, s.net.KeeperGenesisBlock, atBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registered validators: %w", err)
	}

	pubkeys := make([]phase0.BLSPubKey, 0, len(rawPubkeys))

	for _, raw := range rawPubkeys {
		if len(raw) != len(phase0.BLSPubKey{}) {
			return nil, fmt.Errorf("invalid registered pubkey length %d", len(raw))
		}

		var pubkey phase0.BLSPubKey

		copy(pubkey[:], raw)
		pubkeys = append(pubkeys, pubkey)
	}

	beaconValidators, err := s.cl.ValidatorsByPubkeys(ctx, pubkeys)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault validators: %w", err)
	}

	validators := make([]*withdrawals.Validator, 0, len(beaconValidators))

	for _, val := range beaconValidators {
		validators = append(validators, &withdrawals.Validator{
			Index:                 uint64(val.Index),
			PublicKey:             val.Validator.PublicKey,
			Status:                val.Status,
			WithdrawalCredentials: val.Validator.WithdrawalCredentials,
		})
	}

	return validators, nil
}

// PodOwners returns the vault's pod to owner mapping as of the given block.
func (s *Service) PodOwners(ctx context.Context, atBlock uint64) (withdrawals.PodOwnerMap, error) {
	return s.vault.EigenPodOwners(ctx, s.net.KeeperGenesisBlock, atBlock)
}

// BeaconOracleSlot returns the slot of the newest beacon oracle update known
// to the pod manager's oracle as of the given block.
func (s *Service) BeaconOracleSlot(ctx context.Context, atBlock uint64) (phase0.Slot, error) {
	oracleAddr, err := s.podManager.BeaconChainOracle(ctx, atBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve beacon oracle address: %w", err)
	}

	slot, ok, err := s.oracle.LastUpdateSlot(ctx, oracleAddr, s.net.KeeperGenesisBlock, atBlock)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, fmt.Errorf("no beacon oracle update found up to block %d", atBlock)
	}

	return slot, nil
}
