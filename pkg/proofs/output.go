package proofs

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// generatorOutput mirrors the JSON the proofs-generation binary writes.
type generatorOutput struct {
	BeaconStateRoot string   `json:"beaconStateRoot"`
	StateRootProof  []string `json:"StateRootAgainstLatestBlockHeaderProof"`

	WithdrawalProof        []string `json:"WithdrawalProof"`
	SlotProof              []string `json:"SlotProof"`
	ExecutionPayloadProof  []string `json:"ExecutionPayloadProof"`
	TimestampProof         []string `json:"TimestampProof"`
	HistoricalSummaryProof []string `json:"HistoricalSummaryProof"`
	BlockHeaderRootIndex   uint64   `json:"blockHeaderRootIndex"`
	HistoricalSummaryIndex uint64   `json:"historicalSummaryIndex"`
	BlockHeaderRoot        string   `json:"blockHeaderRoot"`
	SlotRoot               string   `json:"slotRoot"`
	TimestampRoot          string   `json:"timestampRoot"`
	ExecutionPayloadRoot   string   `json:"executionPayloadRoot"`

	WithdrawalFields []string `json:"WithdrawalFields"`
	ValidatorFields  []string `json:"ValidatorFields"`
	ValidatorProof   []string `json:"ValidatorProof"`
}

func parseOutput(path string) (*withdrawals.ProofBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof output: %w", err)
	}

	var out generatorOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse proof output: %w", err)
	}

	bundle := &withdrawals.ProofBundle{
		BlockRootIndex:         out.BlockHeaderRootIndex,
		HistoricalSummaryIndex: out.HistoricalSummaryIndex,
	}

	proofs := []struct {
		name   string
		nodes  []string
		target *[]byte
	}{
		{"state root proof", out.StateRootProof, &bundle.StateRootProof},
		{"withdrawal proof", out.WithdrawalProof, &bundle.WithdrawalProof},
		{"slot proof", out.SlotProof, &bundle.SlotProof},
		{"execution payload proof", out.ExecutionPayloadProof, &bundle.ExecutionPayloadProof},
		{"timestamp proof", out.TimestampProof, &bundle.TimestampProof},
		{"historical summary proof", out.HistoricalSummaryProof, &bundle.HistoricalSummaryProof},
		{"validator fields proof", out.ValidatorProof, &bundle.ValidatorFieldsProof},
	}
	for _, proof := range proofs {
		*proof.target, err = concatProof(proof.nodes)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", proof.name, err)
		}
	}

	roots := []struct {
		name   string
		node   string
		target *[32]byte
	}{
		{"beacon state root", out.BeaconStateRoot, &bundle.BeaconStateRoot},
		{"block header root", out.BlockHeaderRoot, &bundle.BlockRoot},
		{"slot root", out.SlotRoot, &bundle.SlotRoot},
		{"timestamp root", out.TimestampRoot, &bundle.TimestampRoot},
		{"execution payload root", out.ExecutionPayloadRoot, &bundle.ExecutionPayloadRoot},
	}
	for _, root := range roots {
		*root.target, err = decodeRoot(root.node)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", root.name, err)
		}
	}

	bundle.WithdrawalFields, err = decodeFields(out.WithdrawalFields)
	if err != nil {
		return nil, fmt.Errorf("invalid withdrawal fields: %w", err)
	}

	bundle.ValidatorFields, err = decodeFields(out.ValidatorFields)
	if err != nil {
		return nil, fmt.Errorf("invalid validator fields: %w", err)
	}

	return bundle, nil
}

// concatProof flattens a list of hex-encoded 32-byte nodes into the packed
// byte form the pod contract expects.
func concatProof(nodes []string) ([]byte, error) {
	proof := make([]byte, 0, len(nodes)*32)

	for _, node := range nodes {
		raw, err := hexutil.Decode(node)
		if err != nil {
			return nil, err
		}

		proof = append(proof, raw...)
	}

	return proof, nil
}

func decodeRoot(node string) ([32]byte, error) {
	var root [32]byte

	raw, err := hexutil.Decode(node)
	if err != nil {
		return root, err
	}

	if len(raw) != 32 {
		return root, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}

	copy(root[:], raw)

	return root, nil
}

func decodeFields(nodes []string) ([][32]byte, error) {
	fields := make([][32]byte, 0, len(nodes))

	for _, node := range nodes {
		root, err := decodeRoot(node)
		if err != nil {
			return nil, err
		}

		fields = append(fields, root)
	}

	return fields, nil
}
