package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Inspect and control configured MCP servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENABLED\tSTATUS\tCOMMAND")
		for _, info := range rt.mgr.ListServers() {
			sc, _ := rt.cfg.GetServer(info.Name)
			command := sc.Command
			for _, arg := range sc.Args {
				command += " " + arg
			}
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", info.Name, info.Enabled, info.Status, command)
		}
		return w.Flush()
	},
}

var serversStartCmd = &cobra.Command{
	Use:   "start <server>",
	Short: "Start a server and verify its handshake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		name := args[0]
		if err := rt.mgr.StartServer(cmd.Context(), name); err != nil {
			return err
		}

		tools, err := rt.cli.ListServerTools(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("server %s started but tool listing failed: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server %s started: %d tools available\n", name, len(tools))
		return nil
	},
}

var serversStopCmd = &cobra.Command{
	Use:   "stop <server>",
	Short: "Stop a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}

		if err := rt.mgr.StopServer(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server %s stopped\n", args[0])
		return nil
	},
}

var serversRestartCmd = &cobra.Command{
	Use:   "restart <server>",
	Short: "Restart a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		name := args[0]
		if err := rt.mgr.RestartServer(cmd.Context(), name); err != nil {
			return err
		}
		info, _ := rt.mgr.ServerInfo(name)
		fmt.Fprintf(cmd.OutOrStdout(), "Server %s restarted (restart count %d)\n", name, info.RestartCount)
		return nil
	},
}

func init() {
	serversCmd.AddCommand(serversListCmd, serversStartCmd, serversStopCmd, serversRestartCmd)
	rootCmd.AddCommand(serversCmd)
}
