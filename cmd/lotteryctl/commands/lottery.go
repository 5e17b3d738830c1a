package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/lottery"
	"github.com/Mubson1/Deploy-Lottery/internal/units"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deploy a lottery and play a full round",
	Long: `Deploy a new lottery, start it, enter it once, end it and print the winner.

On a local network the mocks are deployed first if needed and the
randomness request is answered through the coordinator mock.

Examples:
  lotteryctl run
  lotteryctl run --network ganache-local`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a new lottery",
	Long: `Deploy the lottery contract with the price feed, VRF coordinator, LINK
token, fee and key hash of the active network.

When the network profile sets verify: true the source is published to the
block explorer afterwards. A failed publication is logged and does not fail
the deployment.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the latest lottery for entries",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

var enterCmd = &cobra.Command{
	Use:   "enter",
	Short: "Enter the latest lottery",
	Long: `Enter the latest lottery paying the entrance fee plus the configured
buffer.

Examples:
  lotteryctl enter
  lotteryctl enter --index 2
  lotteryctl enter --id alice`,
	Args: cobra.NoArgs,
	RunE: runEnter,
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the latest lottery and wait for the winner",
	Long: `Fund the latest lottery with LINK, end it and wait for the randomness
answer that picks the winner.

If no answer arrives within lottery.randomness_timeout the command reports
the round as pending and prints the previous winner.`,
	Args: cobra.NoArgs,
	RunE: runEnd,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the latest lottery",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var winnerCmd = &cobra.Command{
	Use:   "winner",
	Short: "Print the recent winner of the latest lottery",
	Args:  cobra.NoArgs,
	RunE:  runWinner,
}

func runRun(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		res, err := s.scripts.Run(ctx)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	})
}

func runDeploy(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		l, err := s.scripts.DeployLottery(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"network": s.env.Network,
				"address": l.Address,
			})
		}
		return nil
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.scripts.StartLottery(ctx)
	})
}

func runEnter(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		paid, err := s.scripts.EnterLottery(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"paid_wei": paid.String()})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Paid %s ETH\n", units.FormatEther(paid))
		return nil
	})
}

func runEnd(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		res, err := s.scripts.EndLottery(ctx)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	})
}

func printResult(cmd *cobra.Command, res *lottery.Result) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"lottery": res.Lottery,
			"winner":  res.Winner,
			"pending": res.Pending,
		})
	}
	if res.Pending {
		fmt.Fprintf(cmd.OutOrStdout(), "Randomness still pending, previous winner is %s\n", res.Winner.Hex())
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		st, err := s.scripts.Status(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			out := map[string]interface{}{
				"network":       st.Network,
				"address":       st.Address,
				"state":         st.State.String(),
				"entrance_fee":  st.EntranceFee.String(),
				"recent_winner": st.RecentWinner,
				"balance_wei":   st.Balance.String(),
				"deployments":   st.Deployments,
				"link_balance":  nil,
			}
			if st.LinkBalance != nil {
				out["link_balance"] = st.LinkBalance.String()
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintf(w, "Network:\t%s\n", st.Network)
		fmt.Fprintf(w, "Lottery:\t%s\n", st.Address.Hex())
		fmt.Fprintf(w, "State:\t%s\n", st.State)
		fmt.Fprintf(w, "Entrance fee:\t%s wei (%s ETH)\n", humanize.BigComma(st.EntranceFee), units.FormatEther(st.EntranceFee))
		fmt.Fprintf(w, "Balance:\t%s ETH\n", units.FormatEther(st.Balance))
		if st.LinkBalance != nil {
			fmt.Fprintf(w, "LINK balance:\t%s LINK\n", units.FormatToken(st.LinkBalance, units.LinkDecimals))
		}
		fmt.Fprintf(w, "Recent winner:\t%s\n", st.RecentWinner.Hex())
		fmt.Fprintf(w, "Deployments:\t%d\n", st.Deployments)
		return w.Flush()
	})
}

func runWinner(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		winner, err := s.scripts.Winner(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"winner": winner})
		}
		fmt.Fprintln(cmd.OutOrStdout(), winner.Hex())
		return nil
	})
}
