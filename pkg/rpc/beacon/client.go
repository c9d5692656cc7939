// Package beacon provides a client for interacting with Ethereum consensus
// layer nodes.
package beacon

import (
	"context"
	"fmt"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	eth2http "github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// validatorsFetchChunk is the number of pubkeys resolved per request.
const validatorsFetchChunk = 100

// Genesis holds genesis information.
type Genesis struct {
	GenesisTime           time.Time
	GenesisValidatorsRoot phase0.Root
	GenesisForkVersion    phase0.Version
}

// Client wraps the consensus layer client for beacon node interactions.
type Client struct {
	client  eth2client.Service
	baseURL string
	log     logrus.FieldLogger
}

// NewClient creates a new CL client connected to the specified beacon node.
func NewClient(ctx context.Context, baseURL string, log logrus.FieldLogger) (*Client, error) {
	clientLog := log.WithField("component", "cl-client")

	httpClient, err := eth2http.New(ctx,
		eth2http.WithAddress(baseURL),
		eth2http.WithLogLevel(zerolog.WarnLevel),
		eth2http.WithTimeout(2*time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		client:  httpClient,
		baseURL: baseURL,
		log:     clientLog,
	}, nil
}

// Close releases the client. The underlying HTTP client holds no
// long-lived connections that need closing.
func (c *Client) Close() {}

// GetGenesis fetches genesis information.
func (c *Client) GetGenesis(ctx context.Context) (*Genesis, error) {
	provider, ok := c.client.(eth2client.GenesisProvider)
	if !ok {
		return nil, fmt.Errorf("client does not support genesis queries")
	}

	resp, err := provider.Genesis(ctx, &api.GenesisOpts{})
	if err != nil {
		return nil, fmt.Errorf("failed to get genesis: %w", err)
	}

	return &Genesis{
		GenesisTime:           resp.Data.GenesisTime,
		GenesisValidatorsRoot: resp.Data.GenesisValidatorsRoot,
		GenesisForkVersion:    resp.Data.GenesisForkVersion,
	}, nil
}

// GetSecondsPerSlot fetches the slot duration from the chain spec.
func (c *Client) GetSecondsPerSlot(ctx context.Context) (time.Duration, error) {
	provider, ok := c.client.(eth2client.SpecProvider)
	if !ok {
		return 0, fmt.Errorf("client does not support spec queries")
	}

	resp, err := provider.Spec(ctx, &api.SpecOpts{})
	if err != nil {
		return 0, fmt.Errorf("failed to get spec: %w", err)
	}

	secondsPerSlot, ok := resp.Data["SECONDS_PER_SLOT"].(time.Duration)
	if !ok {
		return 0, fmt.Errorf("spec is missing SECONDS_PER_SLOT")
	}

	return secondsPerSlot, nil
}

// FinalizedBlockNumber returns the execution block number of the finalized
// beacon block.
func (c *Client) FinalizedBlockNumber(ctx context.Context) (uint64, error) {
	provider, ok := c.client.(eth2client.SignedBeaconBlockProvider)
	if !ok {
		return 0, fmt.Errorf("client does not support block queries")
	}

	resp, err := provider.SignedBeaconBlock(ctx, &api.SignedBeaconBlockOpts{Block: "finalized"})
	if err != nil {
		return 0, fmt.Errorf("failed to get finalized block: %w", err)
	}

	blockNumber, err := resp.Data.ExecutionBlockNumber()
	if err != nil {
		return 0, fmt.Errorf("failed to read execution block number: %w", err)
	}

	return blockNumber, nil
}

// ValidatorsByPubkeys resolves beacon validators for the given public keys
// at head, in chunks.
func (c *Client) ValidatorsByPubkeys(ctx context.Context, pubkeys []phase0.BLSPubKey) ([]*apiv1.Validator, error) {
	provider, ok := c.client.(eth2client.ValidatorsProvider)
	if !ok {
		return nil, fmt.Errorf("client does not support validator queries")
	}

	validators := make([]*apiv1.Validator, 0, len(pubkeys))

	for i := 0; i < len(pubkeys); i += validatorsFetchChunk {
		end := i + validatorsFetchChunk
		if end > len(pubkeys) {
			end = len(pubkeys)
		}

		resp, err := provider.Validators(ctx, &api.ValidatorsOpts{
			State:   "head",
			PubKeys: pubkeys[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get validators: %w", err)
		}

		for _, validator := range resp.Data {
			validators = append(validators, validator)
		}
	}

	return validators, nil
}
