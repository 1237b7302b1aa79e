// Package executor runs MCP tools by prefixed id, keeping a bounded
// execution history and per-tool statistics.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/events"
	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/protocol"
)

// ToolIDPrefix starts every executable tool id: mcp_<server>_<tool>.
const ToolIDPrefix = "mcp"

// DefaultMaxHistory bounds the execution history.
const DefaultMaxHistory = 1000

// ToolCaller invokes a tool on a connected server. *client.Client is the
// production implementation.
type ToolCaller interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) ([]protocol.ContentItem, error)
}

var _ ToolCaller = (*client.Client)(nil)

// ExecutionRecord is one attempted tool execution.
type ExecutionRecord struct {
	ID           string
	ToolID       string
	ServerName   string
	ToolName     string
	Content      []protocol.ContentItem
	Success      bool
	DurationMs   int64
	Timestamp    int64 // unix seconds
	ErrorMessage string
}

// ToolStats aggregates executions of one tool.
type ToolStats struct {
	ToolID        string
	Executions    int64
	Successes     int64
	Failures      int64
	AvgDurationMs float64
	LastExecuted  int64 // unix seconds, zero before the first execution
}

// ToolRequest is one entry in a parallel execution batch.
type ToolRequest struct {
	ToolID    string
	Arguments map[string]any
}

// ExecutionResult pairs a record with the error ExecuteTool returned.
type ExecutionResult struct {
	Record ExecutionRecord
	Err    error
}

// Executor tracks tool executions across all connected servers.
type Executor struct {
	caller ToolCaller
	bus    *events.Bus
	log    *slog.Logger

	mu         sync.RWMutex
	maxHistory int
	history    []ExecutionRecord
	stats      map[string]*ToolStats
}

// New creates an executor with the default history bound.
func New(caller ToolCaller) *Executor {
	return &Executor{
		caller:     caller,
		log:        logger.WithComponent("executor"),
		maxHistory: DefaultMaxHistory,
		stats:      make(map[string]*ToolStats),
	}
}

// SetEventBus attaches a bus for execution lifecycle events.
func (e *Executor) SetEventBus(bus *events.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus = bus
}

// eventBus reads the bus under the lock; publishing happens outside it.
func (e *Executor) eventBus() *events.Bus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bus
}

// SetMaxHistory overrides the history bound (values below 1 keep the
// current bound).
func (e *Executor) SetMaxHistory(n int) {
	if n < 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxHistory = n
	if excess := len(e.history) - n; excess > 0 {
		e.history = append(e.history[:0], e.history[excess:]...)
	}
}

// ParseToolID splits mcp_<server>_<tool> into server and tool. Underscores
// in the tool name are preserved; the server name cannot contain one.
func ParseToolID(toolID string) (server, tool string, err error) {
	parts := strings.Split(toolID, "_")
	if len(parts) < 3 || parts[0] != ToolIDPrefix {
		return "", "", &ToolNotFoundError{ToolID: toolID, Reason: "invalid tool id format"}
	}
	return parts[1], strings.Join(parts[2:], "_"), nil
}

// ExecuteTool runs one tool and records the attempt. A malformed tool id
// fails fast without writing a record; an execution failure is recorded
// and returned as a ToolNotFoundError carrying the underlying error.
func (e *Executor) ExecuteTool(ctx context.Context, toolID string, args map[string]any) (ExecutionRecord, error) {
	server, tool, err := ParseToolID(toolID)
	if err != nil {
		return ExecutionRecord{}, err
	}

	e.publishStarted(toolID, server)
	e.log.Debug("executing tool", "tool_id", toolID, "server", server, "tool", tool)

	start := time.Now()
	content, callErr := e.caller.CallTool(ctx, server, tool, args)
	duration := time.Since(start).Milliseconds()

	record := ExecutionRecord{
		ID:         uuid.NewString(),
		ToolID:     toolID,
		ServerName: server,
		ToolName:   tool,
		Content:    content,
		Success:    callErr == nil,
		DurationMs: duration,
		Timestamp:  time.Now().Unix(),
	}
	if callErr != nil {
		record.ErrorMessage = callErr.Error()
	}

	e.record(record)
	e.publishCompleted(record)

	if callErr != nil {
		e.log.Warn("tool execution failed", "tool_id", toolID, "error", callErr)
		return record, &ToolNotFoundError{ToolID: toolID, Reason: callErr.Error(), Err: callErr}
	}
	return record, nil
}

// ExecuteToolWithTimeout runs one tool under a deadline. A timed-out
// execution is recorded as a failure like any other.
func (e *Executor) ExecuteToolWithTimeout(ctx context.Context, toolID string, args map[string]any, timeout time.Duration) (ExecutionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.ExecuteTool(ctx, toolID, args)
}

// ExecuteToolsParallel runs all requests concurrently and returns results
// in input order.
func (e *Executor) ExecuteToolsParallel(ctx context.Context, requests []ToolRequest) []ExecutionResult {
	results := make([]ExecutionResult, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req ToolRequest) {
			defer wg.Done()
			record, err := e.ExecuteTool(ctx, req.ToolID, req.Arguments)
			results[i] = ExecutionResult{Record: record, Err: err}
		}(i, req)
	}
	wg.Wait()

	return results
}

// record appends to history (evicting the oldest past the bound) and
// folds the attempt into the tool's stats.
func (e *Executor) record(r ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, r)
	if len(e.history) > e.maxHistory {
		e.history = append(e.history[:0], e.history[1:]...)
	}

	stat, ok := e.stats[r.ToolID]
	if !ok {
		stat = &ToolStats{ToolID: r.ToolID}
		e.stats[r.ToolID] = stat
	}

	stat.Executions++
	if r.Success {
		stat.Successes++
	} else {
		stat.Failures++
	}
	// Incremental mean keeps the update O(1) regardless of history size.
	stat.AvgDurationMs = (stat.AvgDurationMs*float64(stat.Executions-1) + float64(r.DurationMs)) / float64(stat.Executions)
	stat.LastExecuted = r.Timestamp
}

func (e *Executor) publishStarted(toolID, server string) {
	bus := e.eventBus()
	if bus == nil {
		return
	}
	ev := events.New(events.KindToolExecutionStarted)
	ev.ToolID = toolID
	ev.ServerName = server
	bus.Publish(ev)
}

func (e *Executor) publishCompleted(r ExecutionRecord) {
	bus := e.eventBus()
	if bus == nil {
		return
	}
	ev := events.New(events.KindToolExecutionCompleted)
	ev.ToolID = r.ToolID
	ev.ServerName = r.ServerName
	ev.Success = r.Success
	ev.DurationMs = r.DurationMs
	ev.Error = r.ErrorMessage
	bus.Publish(ev)
}
