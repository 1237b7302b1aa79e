// Package health tracks per-server health derived from tool listing
// and runs a periodic monitor over connected servers.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/events"
	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/protocol"
)

// Status is the health classification of a server.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ServerHealth is the result of the most recent check of one server.
type ServerHealth struct {
	ServerName          string    `json:"serverName"`
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"lastCheck"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	Message             string    `json:"message,omitempty"`
}

// ToolLister is the slice of the client the monitor needs. Satisfied by
// *client.Client; tests substitute fakes.
type ToolLister interface {
	ConnectedServers() []string
	ListServerTools(ctx context.Context, server string) ([]protocol.ToolDefinition, error)
}

var _ ToolLister = (*client.Client)(nil)

// Monitor checks server health on demand or on a timer.
type Monitor struct {
	lister ToolLister
	bus    *events.Bus
	log    *slog.Logger

	mu      sync.RWMutex
	servers map[string]*ServerHealth
}

// NewMonitor creates a monitor over a tool lister.
func NewMonitor(lister ToolLister) *Monitor {
	return &Monitor{
		lister:  lister,
		log:     logger.WithComponent("health"),
		servers: make(map[string]*ServerHealth),
	}
}

// SetEventBus attaches a bus for status-transition events. Nil detaches.
func (m *Monitor) SetEventBus(bus *events.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
}

// CheckServer probes one server by listing its tools and records the
// outcome. A listing error marks the server unhealthy, an empty tool
// list degraded, anything else healthy.
func (m *Monitor) CheckServer(ctx context.Context, server string) ServerHealth {
	tools, err := m.lister.ListServerTools(ctx, server)
	now := time.Now()

	m.mu.Lock()
	state, ok := m.servers[server]
	if !ok {
		state = &ServerHealth{ServerName: server, Status: StatusUnknown}
		m.servers[server] = state
	}
	previous := state.Status

	state.LastCheck = now
	switch {
	case err != nil:
		state.Status = StatusUnhealthy
		state.ConsecutiveFailures++
		state.Message = err.Error()
	case len(tools) == 0:
		state.Status = StatusDegraded
		state.ConsecutiveFailures = 0
		state.Message = "server reports no tools"
	default:
		state.Status = StatusHealthy
		state.ConsecutiveFailures = 0
		state.Message = fmt.Sprintf("%d tools available", len(tools))
	}
	result := *state
	bus := m.bus
	m.mu.Unlock()

	if previous != result.Status {
		m.log.Info("server health changed",
			"server", server,
			"from", string(previous),
			"to", string(result.Status))
		if bus != nil {
			ev := events.New(events.KindServerConnectionChanged)
			ev.ServerName = server
			ev.Connected = result.Status != StatusUnhealthy
			if result.Status == StatusUnhealthy {
				ev.Error = result.Message
			}
			bus.Publish(ev)
		}
	}
	return result
}

// CheckAll probes every connected server and returns the results sorted
// by server name.
func (m *Monitor) CheckAll(ctx context.Context) []ServerHealth {
	servers := m.lister.ConnectedServers()
	out := make([]ServerHealth, 0, len(servers))
	for _, server := range servers {
		out = append(out, m.CheckServer(ctx, server))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerName < out[j].ServerName })
	return out
}

// ServerHealth returns the last recorded health of one server. Servers
// never checked report unknown.
func (m *Monitor) ServerHealth(server string) ServerHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.servers[server]
	if !ok {
		return ServerHealth{ServerName: server, Status: StatusUnknown}
	}
	return *state
}

// Snapshot returns the last recorded health of every checked server,
// sorted by name.
func (m *Monitor) Snapshot() []ServerHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerHealth, 0, len(m.servers))
	for _, state := range m.servers {
		out = append(out, *state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerName < out[j].ServerName })
	return out
}

// Run checks all connected servers every interval until the context is
// cancelled. The first sweep happens immediately.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.log.Info("health monitor started", "interval", interval.String())
	m.CheckAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}
