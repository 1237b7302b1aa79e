// Package process finds and cleans up MCP server processes left behind
// after a crash. Servers are located by the distinctive part of their
// configured command line.
package process

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zhubert/mcpcore/config"
	"github.com/zhubert/mcpcore/exec"
	"github.com/zhubert/mcpcore/logger"
)

// lookupTimeout bounds each process-table query.
const lookupTimeout = 5 * time.Second

// ServerProcess is a running MCP server found on the system.
type ServerProcess struct {
	PID     int    // Process ID
	Command string // Full command line
}

// SearchPattern returns the string used to locate a server's processes
// in the process table. The first non-flag argument is the most
// distinctive part of an MCP command line (the npx package name);
// commands without one match on the executable itself.
func SearchPattern(sc config.ServerConfig) string {
	for _, arg := range sc.Args {
		if strings.HasPrefix(arg, "-") || len(arg) <= 1 {
			continue
		}
		return arg
	}
	return sc.Command
}

// Patterns returns the search patterns for every configured server,
// deduplicated.
func Patterns(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range cfg.ServerNames() {
		sc, ok := cfg.GetServer(name)
		if !ok {
			continue
		}
		pattern := SearchPattern(sc)
		if pattern == "" || seen[pattern] {
			continue
		}
		seen[pattern] = true
		out = append(out, pattern)
	}
	return out
}

// FindServerProcesses finds every running process matching one of the
// patterns. Processes matching multiple patterns appear once.
func FindServerProcesses(ctx context.Context, patterns []string) ([]ServerProcess, error) {
	log := logger.WithComponent("process")
	executor := exec.GetDefaultExecutor()

	seen := make(map[int]bool)
	var processes []ServerProcess

	for _, pattern := range patterns {
		pids, err := findPIDs(ctx, executor, pattern)
		if err != nil {
			return nil, err
		}
		for _, pid := range pids {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			command, err := commandLine(ctx, executor, pid)
			if err != nil {
				// Process exited between the lookup and the query.
				continue
			}
			processes = append(processes, ServerProcess{PID: pid, Command: command})
		}
	}

	log.Debug("found server processes", "count", len(processes))
	return processes, nil
}

// findPIDs locates processes whose command line matches pattern.
func findPIDs(ctx context.Context, executor exec.CommandExecutor, pattern string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	output, err := executor.Output(ctx, "", "pgrep", "-f", pattern)
	if err != nil {
		// pgrep exits 1 when nothing matched.
		return nil, nil
	}

	var pids []int
	for _, field := range strings.Fields(string(output)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// commandLine returns the full command line of a PID.
func commandLine(ctx context.Context, executor exec.CommandExecutor, pid int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	output, err := executor.Output(ctx, "", "ps", "-p", strconv.Itoa(pid), "-o", "args=")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// KillProcess kills a process by PID.
func KillProcess(pid int) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	executor := exec.GetDefaultExecutor()
	if runtime.GOOS == "windows" {
		_, _, err := executor.Run(ctx, "", "taskkill", "/F", "/PID", strconv.Itoa(pid))
		return err
	}
	_, _, err := executor.Run(ctx, "", "kill", "-9", strconv.Itoa(pid))
	return err
}

// FindOrphans finds server processes not owned by this runtime.
// knownPIDs holds the PIDs of servers the manager is running.
func FindOrphans(ctx context.Context, patterns []string, knownPIDs map[int]bool) ([]ServerProcess, error) {
	all, err := FindServerProcesses(ctx, patterns)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("process")
	var orphans []ServerProcess
	for _, proc := range all {
		if knownPIDs[proc.PID] {
			continue
		}
		orphans = append(orphans, proc)
		log.Info("found orphaned server process", "pid", proc.PID, "command", proc.Command)
	}
	return orphans, nil
}

// CleanupOrphans kills every orphaned server process and returns how
// many were killed. Kill failures are logged and skipped.
func CleanupOrphans(ctx context.Context, patterns []string, knownPIDs map[int]bool) (int, error) {
	orphans, err := FindOrphans(ctx, patterns, knownPIDs)
	if err != nil {
		return 0, err
	}

	log := logger.WithComponent("process")
	killed := 0
	for _, proc := range orphans {
		log.Info("killing orphaned server process", "pid", proc.PID)
		if err := KillProcess(proc.PID); err != nil {
			log.Error("failed to kill process", "pid", proc.PID, "error", err)
			continue
		}
		killed++
	}
	return killed, nil
}
