package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/mcpcore/logger"
)

var flagLogLines int

var logsCmd = &cobra.Command{
	Use:   "logs [server]",
	Short: "Show the runtime log, or one server's stderr log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error
		if len(args) == 1 {
			path, err = logger.ServerLogPath(args[0])
		} else {
			path, err = logger.DefaultLogPath()
		}
		if err != nil {
			return err
		}

		lines, err := tailFile(path, flagLogLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

// tailFile returns the last maxLines lines of a file. A missing file
// yields no lines.
func tailFile(path string, maxLines int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(lines) == maxLines {
			copy(lines, lines[1:])
			lines = lines[:maxLines-1]
		}
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func init() {
	logsCmd.Flags().IntVar(&flagLogLines, "lines", 100, "number of trailing lines to show")
	rootCmd.AddCommand(logsCmd)
}
