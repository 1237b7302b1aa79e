package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/config"
	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/process"
)

var flagCleanLogs bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Kill orphaned server processes left behind by a crash",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		killed, err := process.CleanupOrphans(cmd.Context(), process.Patterns(cfg), nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Killed %d orphaned server process(es)\n", killed)

		if flagCleanLogs {
			removed, err := logger.ClearLogs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d log file(s)\n", removed)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&flagCleanLogs, "logs", false, "also remove log files")
	rootCmd.AddCommand(cleanCmd)
}
