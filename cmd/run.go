package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/withdrawoor/contracts"
	"github.com/ethpandaops/withdrawoor/pkg/chain"
	"github.com/ethpandaops/withdrawoor/pkg/checkpoint"
	"github.com/ethpandaops/withdrawoor/pkg/config"
	"github.com/ethpandaops/withdrawoor/pkg/metrics"
	"github.com/ethpandaops/withdrawoor/pkg/proofs"
	"github.com/ethpandaops/withdrawoor/pkg/rpc/beacon"
	"github.com/ethpandaops/withdrawoor/pkg/rpc/execution"
	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the withdrawal processor",
	Long: `Connects to the execution and consensus nodes and assembles withdrawal
call batches, once or on an interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		netCfg := config.Networks[cfg.Network]

		logger.WithFields(logrus.Fields{
			"network": cfg.Network,
			"vault":   cfg.Vault,
		}).Info("Starting withdrawoor")

		logger.Info("Connecting to consensus layer...")

		clClient, err := beacon.NewClient(ctx, cfg.CLClient, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to CL: %w", err)
		}
		defer clClient.Close()

		logger.Info("Connecting to execution layer...")

		elClient, err := execution.NewClient(ctx, cfg.ELRPC, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to EL: %w", err)
		}
		defer elClient.Close()

		chainID, err := elClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("failed to get chain ID: %w", err)
		}

		if chainID.Uint64() != netCfg.ChainID {
			return fmt.Errorf("EL chain ID %d does not match network %s (%d)",
				chainID.Uint64(), cfg.Network, netCfg.ChainID)
		}

		svc, store, err := buildService(ctx, netCfg, clClient, elClient)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck // cleanup

		multicall, err := contracts.NewMulticall(netCfg.MulticallContract)
		if err != nil {
			return err
		}

		metricsSrv := metrics.New(version, logger)
		if cfg.MetricsPort > 0 {
			metricsSrv.Start(cfg.MetricsPort)
		}

		if cfg.PollInterval <= 0 {
			return runCycle(ctx, svc, multicall, metricsSrv)
		}

		logger.WithField("interval", cfg.PollInterval.Duration()).Info("Polling for withdrawal work")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(cfg.PollInterval.Duration())
		defer ticker.Stop()

		for {
			if err := runCycle(ctx, svc, multicall, metricsSrv); err != nil {
				metricsSrv.ObserveFailure()
				logger.WithError(err).Error("Withdrawal cycle failed")
			}

			select {
			case sig := <-sigCh:
				logger.WithField("signal", sig.String()).Info("Received shutdown signal")

				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// buildService wires the contracts, chain snapshot source, checkpoint store
// and proof-service factory into a cycle service.
func buildService(
	ctx context.Context,
	netCfg *config.NetworkConfig,
	clClient *beacon.Client,
	elClient *execution.Client,
) (*withdrawals.Service, *checkpoint.Store, error) {
	vault, err := contracts.NewRestakeVault(common.HexToAddress(cfg.Vault), elClient)
	if err != nil {
		return nil, nil, err
	}

	podManager, err := contracts.NewEigenPodManager(netCfg.PodManagerContract, elClient)
	if err != nil {
		return nil, nil, err
	}

	delegation, err := contracts.NewDelegationManager(netCfg.DelegationManagerContract, elClient)
	if err != nil {
		return nil, nil, err
	}

	pods, err := contracts.NewEigenPod(elClient)
	if err != nil {
		return nil, nil, err
	}

	router, err := contracts.NewDelayedWithdrawalRouter(elClient)
	if err != nil {
		return nil, nil, err
	}

	oracle, err := contracts.NewBeaconChainOracle(elClient)
	if err != nil {
		return nil, nil, err
	}

	encoder, err := contracts.NewPodOwner()
	if err != nil {
		return nil, nil, err
	}

	chainSvc, err := chain.NewService(ctx, elClient, clClient, netCfg, vault, podManager, oracle, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chain service: %w", err)
	}

	store, err := checkpoint.NewStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	newProofs := func(oracleSlot phase0.Slot) (withdrawals.ProofService, error) {
		if err := os.MkdirAll(cfg.ProofsWorkdir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create proofs workdir: %w", err)
		}

		return proofs.NewGenerator(
			oracleSlot, netCfg.ChainID, cfg.ProofsBinary, cfg.ProofsWorkdir,
			phase0.Slot(netCfg.ShapellaSlot), clClient, logger), nil
	}

	svc := withdrawals.NewService(
		withdrawals.ServiceConfig{
			GenesisBlock:    netCfg.KeeperGenesisBlock,
			ChunkBlocks:     netCfg.ChunkBlocks(cfg.WithdrawalsChunk.Duration()),
			DefaultStrategy: netCfg.DefaultStrategy,
		},
		withdrawals.ServiceDeps{
			Snapshot:    chainSvc,
			Pods:        pods,
			Delegation:  delegation,
			PodManager:  podManager,
			Router:      router,
			Fetcher:     elClient,
			Balances:    elClient,
			Slots:       chainSvc,
			NewProofs:   newProofs,
			Encoder:     encoder,
			Checkpoints: store,
		},
		logger,
	)

	return svc, store, nil
}

func runCycle(ctx context.Context, svc *withdrawals.Service, multicall *contracts.Multicall, metricsSrv *metrics.Server) error {
	result, err := svc.RunCycle(ctx)
	if err != nil {
		return err
	}

	metricsSrv.ObserveCycle(result)

	calls := result.Calls()
	if len(calls) == 0 {
		logger.WithField("block_number", result.BlockNumber).Info("No withdrawal work")

		return nil
	}

	for _, call := range calls {
		logger.WithFields(logrus.Fields{
			"target":  call.Target.Hex(),
			"payable": call.Payable,
			"data":    call.Data.String(),
		}).Debug("Pending call")
	}

	calldata, err := multicall.AggregateCalldata(calls)
	if err != nil {
		return fmt.Errorf("failed to encode call batch: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"block_number": result.BlockNumber,
		"calls":        len(calls),
		"target":       multicall.Address().Hex(),
		"calldata":     calldata.String(),
	}).Info("Withdrawal batch assembled")

	return nil
}
