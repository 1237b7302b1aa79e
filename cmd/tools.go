package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/executor"
	"github.com/zhubert/mcpcore/registry"
)

var (
	flagToolsServer string
	flagCallArgs    string
	flagCallTimeout time.Duration
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Discover and call server tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools from enabled servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()
		rt.startEnabled(cmd.Context(), cmd.ErrOrStderr())

		reg := registry.New(rt.cli)
		var tools []registry.Tool
		if flagToolsServer != "" {
			tools, err = reg.ServerTools(cmd.Context(), flagToolsServer)
		} else {
			tools, err = reg.AllTools(cmd.Context())
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tPARAMS\tDESCRIPTION")
		for _, tool := range tools {
			fmt.Fprintf(w, "%s\t%d\t%s\n", tool.ID, len(tool.Parameters), truncate(tool.Description, 70))
		}
		return w.Flush()
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool-id>",
	Short: "Call a tool by its mcp_<server>_<tool> id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var toolArgs map[string]any
		if flagCallArgs != "" {
			if err := json.Unmarshal([]byte(flagCallArgs), &toolArgs); err != nil {
				return fmt.Errorf("parse --args: %w", err)
			}
		}

		toolID := args[0]
		server, _, err := executor.ParseToolID(toolID)
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		if err := rt.mgr.StartServer(cmd.Context(), server); err != nil {
			return err
		}

		exec := executor.New(rt.cli)
		record, err := exec.ExecuteToolWithTimeout(cmd.Context(), toolID, toolArgs, flagCallTimeout)
		if err != nil {
			return err
		}

		for _, item := range record.Content {
			if item.Type == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), item.Text)
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Completed in %dms\n", record.DurationMs)
		return nil
	},
}

var toolsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tool execution statistics for this run",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		exec := executor.New(rt.cli)
		stats := exec.AllStats()
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No executions recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tRUNS\tOK\tFAIL\tAVG MS\tSUCCESS")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f\t%.1f%%\n",
				s.ToolID, s.Executions, s.Successes, s.Failures,
				s.AvgDurationMs, exec.SuccessRate(s.ToolID))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	toolsListCmd.Flags().StringVar(&flagToolsServer, "server", "", "limit listing to one server")
	toolsCallCmd.Flags().StringVar(&flagCallArgs, "args", "", "tool arguments as a JSON object")
	toolsCallCmd.Flags().DurationVar(&flagCallTimeout, "timeout", 30*time.Second, "tool call timeout")

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd, toolsStatsCmd)
	rootCmd.AddCommand(toolsCmd)
}
