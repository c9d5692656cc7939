// Package cmd implements the CLI commands for withdrawoor.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ethpandaops/withdrawoor/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
	v       *viper.Viper
)

// version is stamped by the build via -ldflags.
var version = "development"

var rootCmd = &cobra.Command{
	Use:   "withdrawoor",
	Short: "EigenLayer withdrawal orchestration for restaking vaults",
	Long: `Withdrawoor watches a restaking vault's eigenpods and assembles the
contract calls that move withdrawn ether back to the vault: proving beacon
withdrawals, claiming delayed router payouts, queueing exited-validator
balances and completing matured queued withdrawals.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()

		return initConfig()
	},
}

func init() {
	v = viper.New()

	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("network", defaults.Network, "Network name (mainnet, holesky)")
	rootCmd.PersistentFlags().String("el-rpc", "", "Execution layer JSON-RPC URL")
	rootCmd.PersistentFlags().String("cl-client", "", "Consensus layer beacon API URL")
	rootCmd.PersistentFlags().String("vault", "", "Restaking vault contract address")
	rootCmd.PersistentFlags().String("db-path", defaults.DBPath, "Checkpoint database path")
	rootCmd.PersistentFlags().String("proofs-binary", defaults.ProofsBinary, "Path to the proofs-generation binary")
	rootCmd.PersistentFlags().String("proofs-workdir", defaults.ProofsWorkdir, "Directory for proof staging files")
	rootCmd.PersistentFlags().Duration("withdrawals-chunk", defaults.WithdrawalsChunk.Duration(), "Wall-clock width of one withdrawal scan chunk")
	rootCmd.PersistentFlags().Duration("poll-interval", 0, "Run a cycle on this interval (0 = run once)")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "Prometheus metrics port (0 = disabled)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogger() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}

func initConfig() error {
	v.AutomaticEnv()

	loader := config.NewLoader(logger)

	var err error

	if cfgFile != "" {
		cfg, err = loader.LoadConfig(cfgFile)
	} else {
		cfg, err = loader.LoadConfigFromFlags(v)
	}

	if err != nil {
		return err
	}

	return config.ValidateConfig(cfg)
}
