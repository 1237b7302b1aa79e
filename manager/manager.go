// Package manager tracks the lifecycle of configured MCP servers: starting
// and stopping them through the client, restart bookkeeping, and status
// reporting.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/config"
	"github.com/zhubert/mcpcore/events"
	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/transport"
)

// Status is a server's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const (
	// restartSettleDelay is the pause between stop and start during a
	// restart, letting the old process release its resources.
	restartSettleDelay = 500 * time.Millisecond

	// maxAutoRestarts caps how many times the auto-restart sweep will
	// retry a failed server.
	maxAutoRestarts = 3
)

// ServerInfo is a point-in-time snapshot of one server's state.
type ServerInfo struct {
	Name          string
	Status        Status
	StartedAt     int64 // unix seconds, zero when not running
	UptimeSeconds int64
	LastError     string
	RestartCount  int
	Enabled       bool
}

// Connector starts and stops server connections. *client.Client is the
// production implementation.
type Connector interface {
	Connect(ctx context.Context, name string, cfg transport.Config) error
	Disconnect(name string) error
}

var _ Connector = (*client.Client)(nil)

// serverState is the manager's mutable record for one server.
type serverState struct {
	status       Status
	startedAt    time.Time
	lastError    string
	restartCount int
}

// Manager owns server lifecycle state. All status transitions go through
// it; the client only knows about live sessions.
type Manager struct {
	cfg  *config.Config
	conn Connector
	bus  *events.Bus
	log  *slog.Logger

	// settleDelay is restartSettleDelay in production; tests shorten it.
	settleDelay time.Duration

	mu      sync.RWMutex
	servers map[string]*serverState
}

// New creates a manager over the given inventory and connector.
func New(cfg *config.Config, conn Connector) *Manager {
	return &Manager{
		cfg:         cfg,
		conn:        conn,
		log:         logger.WithComponent("manager"),
		settleDelay: restartSettleDelay,
		servers:     make(map[string]*serverState),
	}
}

// SetEventBus attaches a bus for connection-change events.
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
}

// state returns the record for a server, creating a stopped one on first
// reference. Caller must hold mu.
func (m *Manager) state(name string) *serverState {
	s, ok := m.servers[name]
	if !ok {
		s = &serverState{status: StatusStopped}
		m.servers[name] = s
	}
	return s
}

// StartServer connects a configured server and marks it running.
func (m *Manager) StartServer(ctx context.Context, name string) error {
	serverCfg, ok := m.cfg.GetServer(name)
	if !ok {
		return &ServerNotFoundError{Server: name}
	}
	if !serverCfg.Enabled {
		return &ServerDisabledError{Server: name}
	}

	m.mu.Lock()
	s := m.state(name)
	if s.status == StatusRunning || s.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("server %s is already %s", name, s.status)
	}
	s.status = StatusStarting
	s.lastError = ""
	m.mu.Unlock()

	m.log.Info("starting server", "server", name)

	err := m.conn.Connect(ctx, name, transport.Config{
		Command: serverCfg.Command,
		Args:    serverCfg.Args,
		Env:     serverCfg.Env,
	})

	m.mu.Lock()
	if err != nil {
		s.status = StatusError
		s.lastError = err.Error()
		m.mu.Unlock()
		m.log.Error("server failed to start", "server", name, "error", err)
		m.publishConnection(name, false, err.Error())
		return err
	}
	s.status = StatusRunning
	s.startedAt = time.Now()
	m.mu.Unlock()

	m.log.Info("server running", "server", name)
	m.publishConnection(name, true, "")
	return nil
}

// StopServer disconnects a configured server and marks it stopped. Stopping
// a server with no live session is a no-op that still normalizes the status;
// a name not in the inventory is rejected.
func (m *Manager) StopServer(name string) error {
	if _, ok := m.cfg.GetServer(name); !ok {
		return &ServerNotFoundError{Server: name}
	}

	m.mu.Lock()
	s := m.state(name)
	s.status = StatusStopping
	m.mu.Unlock()

	m.log.Info("stopping server", "server", name)

	err := m.conn.Disconnect(name)
	var notFound *client.ServerNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		m.mu.Lock()
		s.status = StatusError
		s.lastError = err.Error()
		m.mu.Unlock()
		m.log.Error("server failed to stop", "server", name, "error", err)
		return err
	}

	m.mu.Lock()
	s.status = StatusStopped
	s.startedAt = time.Time{}
	m.mu.Unlock()

	m.log.Info("server stopped", "server", name)
	m.publishConnection(name, false, "")
	return nil
}

// RestartServer stops a running server, waits for it to settle, and starts
// it again. A server that wasn't running restarts without the settle delay.
// The restart count increments even when the start fails, so the
// auto-restart sweep can give up on a persistently broken server.
func (m *Manager) RestartServer(ctx context.Context, name string) error {
	if _, ok := m.cfg.GetServer(name); !ok {
		return &ServerNotFoundError{Server: name}
	}

	if m.IsRunning(name) {
		if err := m.StopServer(name); err != nil {
			return err
		}
		time.Sleep(m.settleDelay)
	}

	m.mu.Lock()
	m.state(name).restartCount++
	m.mu.Unlock()

	return m.StartServer(ctx, name)
}

// AutoRestartFailed restarts every server currently in the error state
// that hasn't exhausted its restart budget. Individual failures are logged
// and the sweep continues. Returns the names it restarted successfully.
func (m *Manager) AutoRestartFailed(ctx context.Context) []string {
	m.mu.RLock()
	var candidates []string
	for name, s := range m.servers {
		if s.status == StatusError && s.restartCount < maxAutoRestarts {
			candidates = append(candidates, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(candidates)

	var restarted []string
	for _, name := range candidates {
		m.log.Info("auto-restarting failed server", "server", name)
		if err := m.RestartServer(ctx, name); err != nil {
			m.log.Warn("auto-restart failed", "server", name, "error", err)
			continue
		}
		restarted = append(restarted, name)
	}
	return restarted
}

// IsRunning reports whether a server is in the running state.
func (m *Manager) IsRunning(name string) bool {
	return m.Status(name) == StatusRunning
}

// Status returns a server's current status. Servers never touched report
// stopped.
func (m *Manager) Status(name string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.servers[name]; ok {
		return s.status
	}
	return StatusStopped
}

// ServerInfo returns a snapshot for one configured server.
func (m *Manager) ServerInfo(name string) (ServerInfo, bool) {
	serverCfg, ok := m.cfg.GetServer(name)
	if !ok {
		return ServerInfo{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(name, serverCfg), true
}

// ListServers returns snapshots for every configured server, sorted by
// name. Servers never started show as stopped.
func (m *Manager) ListServers() []ServerInfo {
	servers := m.cfg.Servers()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerInfo, 0, len(servers))
	for name, serverCfg := range servers {
		out = append(out, m.snapshot(name, serverCfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunningServers returns the names of running servers, sorted.
func (m *Manager) RunningServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, s := range m.servers {
		if s.status == StatusRunning {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StopAll stops every running server. Errors are logged, not returned;
// shutdown keeps going.
func (m *Manager) StopAll() {
	for _, name := range m.RunningServers() {
		if err := m.StopServer(name); err != nil {
			m.log.Warn("error stopping server during shutdown", "server", name, "error", err)
		}
	}
}

// snapshot builds a ServerInfo. Caller must hold mu (read or write).
func (m *Manager) snapshot(name string, serverCfg config.ServerConfig) ServerInfo {
	info := ServerInfo{
		Name:    name,
		Status:  StatusStopped,
		Enabled: serverCfg.Enabled,
	}
	if s, ok := m.servers[name]; ok {
		info.Status = s.status
		info.LastError = s.lastError
		info.RestartCount = s.restartCount
		if !s.startedAt.IsZero() {
			info.StartedAt = s.startedAt.Unix()
			info.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
		}
	}
	return info
}

func (m *Manager) publishConnection(name string, connected bool, errMsg string) {
	m.mu.RLock()
	bus := m.bus
	m.mu.RUnlock()
	if bus == nil {
		return
	}
	e := events.New(events.KindServerConnectionChanged)
	e.ServerName = name
	e.Connected = connected
	e.Error = errMsg
	bus.Publish(e)
}
