package commands

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/lottery"
	"github.com/Mubson1/Deploy-Lottery/internal/units"
)

var mocksCmd = &cobra.Command{
	Use:   "mocks",
	Short: "Manage the mock contracts of local networks",
}

var mocksDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the price feed, LINK token and VRF coordinator mocks",
	Long: `Deploy MockV3Aggregator, LinkToken and VRFCoordinatorMock and record
them in the deployments registry. Later commands on this network use the
newest recorded mocks.

Examples:
  lotteryctl mocks deploy
  lotteryctl mocks deploy --decimals 8 --initial-value 300000000000`,
	Args: cobra.NoArgs,
	RunE: runMocksDeploy,
}

var fundCmd = &cobra.Command{
	Use:   "fund <address>",
	Short: "Send LINK to a contract",
	Long: `Transfer LINK from the signing account to a contract.

Amounts accept the suffixes link, ether, gwei and wei. Without a suffix
the amount is in LINK base units.

Examples:
  lotteryctl fund 0x5FbDB2315678afecb367f032d93F642f64180aa3
  lotteryctl fund 0x5FbDB2315678afecb367f032d93F642f64180aa3 --amount 0.5link`,
	Args: cobra.ExactArgs(1),
	RunE: runFund,
}

func init() {
	mocksDeployCmd.Flags().Uint8("decimals", lottery.DefaultDecimals, "price feed decimals")
	mocksDeployCmd.Flags().String("initial-value", fmt.Sprint(lottery.DefaultInitialValue), "price feed initial answer")
	mocksCmd.AddCommand(mocksDeployCmd)

	fundCmd.Flags().String("amount", "", "LINK amount (default: lottery.fund_amount)")
}

func runMocksDeploy(cmd *cobra.Command, args []string) error {
	decimals, _ := cmd.Flags().GetUint8("decimals")
	raw, _ := cmd.Flags().GetString("initial-value")
	initial, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid --initial-value %q", raw)
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.scripts.DeployMocks(ctx, decimals, initial)
	})
}

func runFund(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address %q", args[0])
	}
	to := common.HexToAddress(args[0])

	var opts lottery.FundOptions
	if raw, _ := cmd.Flags().GetString("amount"); raw != "" {
		amount, err := units.ParseValue(raw)
		if err != nil {
			return err
		}
		opts.Amount = amount
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		tx, err := s.scripts.FundWithLink(ctx, to, opts)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"tx_hash": tx.Hash()})
		}
		return nil
	})
}
