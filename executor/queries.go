package executor

import "sort"

// History returns all recorded executions of one tool, oldest first.
func (e *Executor) History(toolID string) []ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []ExecutionRecord
	for _, r := range e.history {
		if r.ToolID == toolID {
			out = append(out, r)
		}
	}
	return out
}

// RecentHistory returns the last n executions across all tools, oldest
// first.
func (e *Executor) RecentHistory(n int) []ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := 0
	if len(e.history) > n {
		start = len(e.history) - n
	}
	out := make([]ExecutionRecord, len(e.history)-start)
	copy(out, e.history[start:])
	return out
}

// Stats returns one tool's aggregate statistics.
func (e *Executor) Stats(toolID string) (ToolStats, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stat, ok := e.stats[toolID]
	if !ok {
		return ToolStats{}, false
	}
	return *stat, true
}

// AllStats returns statistics for every tool, sorted by tool id for
// stable output.
func (e *Executor) AllStats() []ToolStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ToolStats, 0, len(e.stats))
	for _, stat := range e.stats {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out
}

// SuccessRate returns the percentage of successful executions for a tool.
// A tool with no executions (or never seen) rates 0.0.
func (e *Executor) SuccessRate(toolID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stat, ok := e.stats[toolID]
	if !ok || stat.Executions == 0 {
		return 0.0
	}
	return float64(stat.Successes) / float64(stat.Executions) * 100.0
}

// MostUsedTools returns up to n tools by descending execution count.
func (e *Executor) MostUsedTools(n int) []ToolStats {
	out := e.AllStats()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Executions > out[j].Executions })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SlowestTools returns up to n tools by descending average duration.
func (e *Executor) SlowestTools(n int) []ToolStats {
	out := e.AllStats()
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgDurationMs > out[j].AvgDurationMs })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ToolsWithErrors returns stats for every tool that has failed at least
// once.
func (e *Executor) ToolsWithErrors() []ToolStats {
	all := e.AllStats()
	out := all[:0]
	for _, stat := range all {
		if stat.Failures > 0 {
			out = append(out, stat)
		}
	}
	return out
}

// ClearHistory drops all execution records, keeping statistics.
func (e *Executor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// ClearStats drops all statistics, keeping history.
func (e *Executor) ClearStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = make(map[string]*ToolStats)
}
