package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/network"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Inspect the deployments registry",
	Long: `Every contract deployed by lotteryctl is recorded per network. The newest
record of a contract is the one later commands interact with.

Examples:
  lotteryctl deployments list
  lotteryctl deployments list --network rinkeby
  lotteryctl deployments reset --network development`,
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the recorded deployments of the active network",
	Args:  cobra.NoArgs,
	RunE:  runDeploymentsList,
}

var deploymentsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every deployment of the active network",
	Long: `Drop the records of the active network. Use this after restarting a
local node; the contracts themselves are not touched.`,
	Args: cobra.NoArgs,
	RunE: runDeploymentsReset,
}

func init() {
	deploymentsResetCmd.Flags().BoolP("force", "f", false, "also reset non-local networks")

	deploymentsCmd.AddCommand(deploymentsListCmd)
	deploymentsCmd.AddCommand(deploymentsResetCmd)
}

func runDeploymentsList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	records, err := reg.List(cmd.Context(), cfg.DefaultNetwork)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"network":     cfg.DefaultNetwork,
			"deployments": records,
			"count":       len(records),
		})
	}

	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No deployments on %s\n", cfg.DefaultNetwork)
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	printTableHeader(w, "CONTRACT", "ADDRESS", "BLOCK", "DEPLOYER", "DEPLOYED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Contract,
			r.Address.Hex(),
			humanize.Comma(int64(r.Block)),
			shortAddress(r.Deployer),
			humanize.Time(r.DeployedAt),
		)
	}
	return w.Flush()
}

func runDeploymentsReset(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force && !network.IsLocal(cfg.DefaultNetwork) {
		return fmt.Errorf("%s is not a local network, pass --force to reset it", cfg.DefaultNetwork)
	}

	reg, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := reg.Reset(cmd.Context(), cfg.DefaultNetwork); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deployments of %s removed\n", cfg.DefaultNetwork)
	return nil
}
