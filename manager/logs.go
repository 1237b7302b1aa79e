package manager

import (
	"bufio"
	"fmt"
	"os"

	"github.com/zhubert/mcpcore/logger"
)

// DefaultLogLines is how many trailing log lines ServerLogs returns when
// the caller passes a non-positive count.
const DefaultLogLines = 100

// ServerLogs returns the last maxLines lines of a server's log file.
// A server that has never logged yields an empty slice.
func (m *Manager) ServerLogs(name string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		maxLines = DefaultLogLines
	}

	path, err := logger.ServerLogPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log for %s: %w", name, err)
	}
	defer f.Close()

	// Ring buffer over the scan keeps memory bounded for big logs.
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
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log for %s: %w", name, err)
	}
	return lines, nil
}
