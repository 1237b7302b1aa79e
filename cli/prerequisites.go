// Package cli checks that the external tools MCP servers depend on are
// installed.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/zhubert/mcpcore/config"
	execpkg "github.com/zhubert/mcpcore/exec"
)

// versionProbeTimeout bounds each version query.
const versionProbeTimeout = 5 * time.Second

// Prerequisite is an external tool required by configured servers.
type Prerequisite struct {
	Name        string // Command name (e.g., "npx", "node")
	Required    bool   // Whether any enabled server depends on it
	Description string
	InstallURL  string
}

// DefaultPrerequisites returns the tools the default server set needs.
func DefaultPrerequisites() []Prerequisite {
	return []Prerequisite{
		{
			Name:        "node",
			Required:    true,
			Description: "Node.js runtime",
			InstallURL:  "https://nodejs.org/en/download",
		},
		{
			Name:        "npx",
			Required:    true,
			Description: "npm package runner (ships with Node.js)",
			InstallURL:  "https://nodejs.org/en/download",
		},
		{
			Name:        "docker",
			Required:    false,
			Description: "Docker (optional, for containerized servers)",
			InstallURL:  "https://docs.docker.com/get-docker",
		},
	}
}

// PrerequisitesFor derives prerequisites from a configuration: one per
// distinct server command, required when any enabled server uses it.
func PrerequisitesFor(cfg *config.Config) []Prerequisite {
	byCommand := make(map[string]*Prerequisite)
	for name, sc := range cfg.Servers() {
		p, ok := byCommand[sc.Command]
		if !ok {
			p = &Prerequisite{
				Name:        sc.Command,
				Description: fmt.Sprintf("required by server %q", name),
			}
			byCommand[sc.Command] = p
		}
		if sc.Enabled {
			p.Required = true
		}
	}

	out := make([]Prerequisite, 0, len(byCommand))
	for _, p := range byCommand {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckResult is the outcome of checking one prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // Version string if available
	Error        error
}

// Check verifies that a tool is available in PATH.
func Check(prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := exec.LookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = probeVersion(prereq.Name)
	return result
}

// CheckAll checks every prerequisite.
func CheckAll(prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = Check(prereq)
	}
	return results
}

// ValidateRequired returns nil when every required tool is present,
// otherwise an error listing what is missing and where to get it.
func ValidateRequired(prereqs []Prerequisite) error {
	var missing []string
	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		if result := Check(prereq); !result.Found {
			entry := fmt.Sprintf("  - %s (%s)", prereq.Name, prereq.Description)
			if prereq.InstallURL != "" {
				entry += fmt.Sprintf("\n    Install: %s", prereq.InstallURL)
			}
			missing = append(missing, entry)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools:\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

// probeVersion asks a tool for its version. Tools disagree on the flag,
// so the common ones are tried in order.
func probeVersion(name string) string {
	executor := execpkg.GetDefaultExecutor()
	for _, flag := range []string{"--version", "-v", "version"} {
		ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
		output, err := executor.Output(ctx, "", name, flag)
		cancel()
		if err != nil {
			continue
		}
		line, _, _ := strings.Cut(string(output), "\n")
		version := strings.TrimSpace(line)
		if version == "" {
			continue
		}
		if len(version) > 100 {
			version = version[:100] + "..."
		}
		return version
	}
	return ""
}

// FormatCheckResults renders check results for terminal display.
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		sb.WriteString(fmt.Sprintf("  %s %s", status, r.Prerequisite.Name))
		if r.Found && r.Version != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Version))
		} else if !r.Found {
			if r.Prerequisite.Required {
				sb.WriteString(" [REQUIRED]")
			} else {
				sb.WriteString(" [optional]")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
