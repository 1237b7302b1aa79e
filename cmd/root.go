// Package cmd is the mcpcore command-line surface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/logger"
)

var appVersion = "dev"

// SetVersion overrides the build version shown by --version.
func SetVersion(v string) {
	appVersion = v
}

var flagDebug bool

var rootCmd = &cobra.Command{
	Use:   "mcpcore",
	Short: "Manage and call MCP servers from the command line",
	Long: `mcpcore spawns Model Context Protocol servers as child processes,
speaks JSON-RPC to them over stdio, and exposes their tools under the
mcp_<server>_<tool> namespace.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDebug(flagDebug)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcpcore v%s\n", appVersion))
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = appVersion
	defer logger.Close()
	return rootCmd.Execute()
}
