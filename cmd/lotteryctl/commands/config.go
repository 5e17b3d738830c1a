package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration with secrets redacted",
	Long: `Print the configuration after merging the file, LOTTERY_* environment
variables and flags. Keys and API tokens are redacted.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configNetworksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the configured network profiles",
	Args:  cobra.NoArgs,
	RunE:  runConfigNetworks,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configNetworksCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	redacted := cfg.Redacted()
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), redacted)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(redacted); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigNetworks(cmd *cobra.Command, args []string) error {
	names := cfg.NetworkNames()
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"default":  cfg.DefaultNetwork,
			"networks": names,
		})
	}

	w := newTable(cmd.OutOrStdout())
	printTableHeader(w, "NAME", "CHAIN ID", "HOST", "DEFAULT")
	for _, name := range names {
		n, err := cfg.Network(name)
		if err != nil {
			return err
		}
		def := ""
		if name == cfg.DefaultNetwork {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, n.ChainID, n.Host, def)
	}
	return w.Flush()
}
