package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of enabled servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()
		rt.startEnabled(cmd.Context(), cmd.ErrOrStderr())

		monitor := health.NewMonitor(rt.cli)
		results := monitor.CheckAll(cmd.Context())
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No servers connected")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER\tSTATUS\tDETAIL")
		unhealthy := 0
		for _, h := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", h.ServerName, h.Status, h.Message)
			if h.Status == health.StatusUnhealthy {
				unhealthy++
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if unhealthy > 0 {
			return fmt.Errorf("%d server(s) unhealthy", unhealthy)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
