// Package commands implements the lotteryctl command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/config"
	"github.com/Mubson1/Deploy-Lottery/internal/logging"
)

var (
	configPath  string
	networkFlag string
	logLevel    string
	logFormat   string
	logFile     string
	jsonOut     bool

	accountIndex int
	accountID    string

	// Set by PersistentPreRunE.
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "lotteryctl",
	Short: "Deploy and run the lottery contract",
	Long: `lotteryctl deploys the lottery contract and drives it through a round:
start, enter, end and pick a winner.

On local networks (development, ganache-local) the Chainlink price feed,
VRF coordinator and LINK token are replaced by mocks that are deployed on
first use. On live networks their addresses come from the network profile
in lottery-config.yaml.

Examples:
  # Full round on a local node
  lotteryctl run

  # Deploy on a testnet and publish the source
  lotteryctl deploy --network rinkeby

  # Enter with the second dev account
  lotteryctl enter --index 1`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, logCloser, err = logging.New(cmd.ErrOrStderr(), logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		})
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: lottery-config.yaml in ., ./config or ~/.lotteryctl)")
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "network profile to use (default: default_network)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().IntVar(&accountIndex, "index", 0, "sign with the dev account at this index (0 means default)")
	rootCmd.PersistentFlags().StringVar(&accountID, "id", "", "sign with this keystore account")

	rootCmd.AddCommand(runCmd, deployCmd, startCmd, enterCmd, endCmd, statusCmd, winnerCmd)
	rootCmd.AddCommand(mocksCmd, fundCmd, deploymentsCmd, accountsCmd, configCmd)
}

// applyFlagOverrides lets explicit flags win over file and env values.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.DefaultNetwork = networkFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	// Profile keys are lowercase once loaded.
	cfg.DefaultNetwork = strings.ToLower(cfg.DefaultNetwork)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("command failed", slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
