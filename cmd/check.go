package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/cli"
	"github.com/zhubert/mcpcore/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the tools configured servers need are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		prereqs := cli.PrerequisitesFor(cfg)
		if len(prereqs) == 0 {
			prereqs = cli.DefaultPrerequisites()
		}

		results := cli.CheckAll(prereqs)
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatCheckResults(results))

		return cli.ValidateRequired(prereqs)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
