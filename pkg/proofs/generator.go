// Package proofs wraps the external eigenpod proofs-generation binary. It
// stages the beacon header, block and state files the binary consumes, runs
// it per withdrawal and parses its output into proof bundles. Staged files
// are scoped to one slot at a time and removed on release.
package proofs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/withdrawoor/pkg/rpc/beacon"
	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// slotsPerHistoricalRoot is SLOTS_PER_HISTORICAL_ROOT from the consensus spec.
const slotsPerHistoricalRoot = 8192

// Generator shells out to the proofs-generation binary for one processing
// run, anchored at a beacon oracle slot.
type Generator struct {
	oracleSlot   phase0.Slot
	chainID      uint64
	binary       string
	workdir      string
	shapellaSlot phase0.Slot

	cl  *beacon.Client
	log logrus.FieldLogger

	// staged files per withdrawal slot, plus the oracle files shared by
	// every invocation of this run.
	staged       map[phase0.Slot][]string
	oracleFiles  []string
	oracleStaged bool
}

// NewGenerator creates a proof generator scoped to one processing run.
func NewGenerator(
	oracleSlot phase0.Slot,
	chainID uint64,
	binary, workdir string,
	shapellaSlot phase0.Slot,
	cl *beacon.Client,
	log logrus.FieldLogger,
) *Generator {
	return &Generator{
		oracleSlot:   oracleSlot,
		chainID:      chainID,
		binary:       binary,
		workdir:      workdir,
		shapellaSlot: shapellaSlot,
		cl:           cl,
		log:          log.WithField("component", "proof-generator"),
		staged:       make(map[phase0.Slot][]string),
	}
}

// GenerateWithdrawalProof stages the required beacon data and runs the
// binary's WithdrawalFieldsProof command for one withdrawal.
func (g *Generator) GenerateWithdrawalProof(
	ctx context.Context,
	withdrawalSlot phase0.Slot,
	validatorIndex, withdrawalIndex uint64,
) (*withdrawals.ProofBundle, error) {
	if err := g.stageOracleFiles(ctx); err != nil {
		return nil, err
	}

	headerFile, bodyFile, summaryStateFile, err := g.stageWithdrawalSlot(ctx, withdrawalSlot)
	if err != nil {
		return nil, err
	}

	historicalSummaryIndex := uint64(withdrawalSlot-g.shapellaSlot) / slotsPerHistoricalRoot
	blockHeaderIndex := uint64(withdrawalSlot) % slotsPerHistoricalRoot

	outputFile := filepath.Join(g.workdir,
		fmt.Sprintf("withdrawal_proof_%d_%d.json", validatorIndex, withdrawalSlot))
	defer g.removeFile(outputFile)

	args := []string{
		"-command", "WithdrawalFieldsProof",
		"-oracleBlockHeaderFile", g.oracleFiles[0],
		"-stateFile", g.oracleFiles[1],
		"-validatorIndex", strconv.FormatUint(validatorIndex, 10),
		"-outputFile", outputFile,
		"-chainID", strconv.FormatUint(g.chainID, 10),
		"-historicalSummariesIndex", strconv.FormatUint(historicalSummaryIndex, 10),
		"-blockHeaderIndex", strconv.FormatUint(blockHeaderIndex, 10),
		"-historicalSummaryStateFile", summaryStateFile,
		"-blockHeaderFile", headerFile,
		"-blockBodyFile", bodyFile,
		"-withdrawalIndex", strconv.FormatUint(withdrawalIndex, 10),
	}

	cmd := exec.CommandContext(ctx, g.binary, args...)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		g.log.WithField("slot", withdrawalSlot).Debug(string(output))
	}

	if err != nil {
		return nil, fmt.Errorf("proof generation failed for slot %d: %w", withdrawalSlot, err)
	}

	oracleTimestamp, err := g.oracleTimestamp()
	if err != nil {
		return nil, err
	}

	bundle, err := parseOutput(outputFile)
	if err != nil {
		return nil, err
	}

	bundle.Slot = withdrawalSlot
	bundle.ValidatorIndex = validatorIndex
	bundle.WithdrawalIndex = withdrawalIndex
	bundle.OracleTimestamp = oracleTimestamp

	return bundle, nil
}

// ReleaseSlot removes the staged files for one withdrawal slot. Files shared
// with the oracle slot stay until Close.
func (g *Generator) ReleaseSlot(slot phase0.Slot) {
	for _, file := range g.staged[slot] {
		if g.isOracleFile(file) {
			continue
		}

		g.removeFile(file)
	}

	delete(g.staged, slot)
}

// Close removes every staged file, including the oracle files shared across
// the run.
func (g *Generator) Close() {
	for slot := range g.staged {
		g.ReleaseSlot(slot)
	}

	for _, file := range g.oracleFiles {
		g.removeFile(file)
	}

	g.oracleFiles = nil
	g.oracleStaged = false
}

func (g *Generator) stageOracleFiles(ctx context.Context) error {
	if g.oracleStaged {
		return nil
	}

	headerFile := g.blockHeaderFilename(g.oracleSlot)
	if err := g.cl.FetchBlockHeaderToFile(ctx, g.oracleSlot, headerFile); err != nil {
		return fmt.Errorf("failed to stage oracle block header: %w", err)
	}

	stateFile := filepath.Join(g.workdir, fmt.Sprintf("state_%d.json", g.oracleSlot))
	if err := g.cl.FetchBeaconStateToFile(ctx, g.oracleSlot, stateFile); err != nil {
		g.removeFile(headerFile)

		return fmt.Errorf("failed to stage oracle state: %w", err)
	}

	g.oracleFiles = []string{headerFile, stateFile}
	g.oracleStaged = true

	return nil
}

// stageWithdrawalSlot fetches the block header, block body and historical
// summary state for one withdrawal slot. Slots already staged are served
// from the previous fetch.
func (g *Generator) stageWithdrawalSlot(ctx context.Context, slot phase0.Slot) (string, string, string, error) {
	if files, ok := g.staged[slot]; ok && len(files) == 3 {
		return files[0], files[1], files[2], nil
	}

	headerFile := g.blockHeaderFilename(slot)
	if err := g.cl.FetchBlockHeaderToFile(ctx, slot, headerFile); err != nil {
		return "", "", "", fmt.Errorf("failed to stage block header for slot %d: %w", slot, err)
	}

	bodyFile := g.blockBodyFilename(slot)
	if err := g.cl.FetchBlockToFile(ctx, slot, bodyFile); err != nil {
		return "", "", "", fmt.Errorf("failed to stage block body for slot %d: %w", slot, err)
	}

	// The historical summary state sits at the first slot of the next
	// SLOTS_PER_HISTORICAL_ROOT period after the withdrawal.
	summaryStateSlot := phase0.Slot(slotsPerHistoricalRoot * (uint64(slot)/slotsPerHistoricalRoot + 1))

	summaryStateFile := filepath.Join(g.workdir, fmt.Sprintf("state_%d.json", summaryStateSlot))
	if !g.isOracleFile(summaryStateFile) {
		if err := g.cl.FetchBeaconStateToFile(ctx, summaryStateSlot, summaryStateFile); err != nil {
			return "", "", "", fmt.Errorf("failed to stage historical summary state: %w", err)
		}
	}

	g.staged[slot] = []string{headerFile, bodyFile, summaryStateFile}

	return headerFile, bodyFile, summaryStateFile, nil
}

func (g *Generator) isOracleFile(path string) bool {
	for _, file := range g.oracleFiles {
		if file == path {
			return true
		}
	}

	return false
}

func (g *Generator) blockHeaderFilename(slot phase0.Slot) string {
	return filepath.Join(g.workdir, fmt.Sprintf("block_header_%d.json", slot))
}

func (g *Generator) blockBodyFilename(slot phase0.Slot) string {
	return filepath.Join(g.workdir, fmt.Sprintf("block_body_%d.json", slot))
}

// oracleTimestamp reads the execution payload timestamp out of the staged
// oracle state.
func (g *Generator) oracleTimestamp() (uint64, error) {
	file, err := os.Open(g.oracleFiles[1])
	if err != nil {
		return 0, fmt.Errorf("failed to open oracle state: %w", err)
	}
	defer file.Close()

	var envelope struct {
		Data struct {
			LatestExecutionPayloadHeader struct {
				Timestamp string `json:"timestamp"`
			} `json:"latest_execution_payload_header"`
		} `json:"data"`
	}

	if err := json.NewDecoder(file).Decode(&envelope); err != nil {
		return 0, fmt.Errorf("failed to parse oracle state: %w", err)
	}

	timestamp, err := strconv.ParseUint(envelope.Data.LatestExecutionPayloadHeader.Timestamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse oracle timestamp: %w", err)
	}

	return timestamp, nil
}

func (g *Generator) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		g.log.WithError(err).WithField("file", path).Warn("Failed to remove staged file")
	}
}
