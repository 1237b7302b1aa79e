package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit the server inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the server inventory as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := struct {
			MCPServers map[string]config.ServerConfig `json:"mcpServers"`
		}{MCPServers: cfg.Servers()}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configEnableCmd = &cobra.Command{
	Use:   "enable <server>",
	Short: "Enable a server and save the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setServerEnabled(cmd, args[0], true)
	},
}

var configDisableCmd = &cobra.Command{
	Use:   "disable <server>",
	Short: "Disable a server and save the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setServerEnabled(cmd, args[0], false)
	},
}

func setServerEnabled(cmd *cobra.Command, name string, enabled bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var ok bool
	if enabled {
		ok = cfg.EnableServer(name)
	} else {
		ok = cfg.DisableServer(name)
	}
	if !ok {
		return fmt.Errorf("server %s is not configured", name)
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Server %s %s\n", name, state)
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configEnableCmd, configDisableCmd)
	rootCmd.AddCommand(configCmd)
}
