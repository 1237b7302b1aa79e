package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/protocol"
	"github.com/zhubert/mcpcore/transport"
)

// DialFunc spawns a transport for a server. Tests substitute fakes.
type DialFunc func(cfg transport.Config) (transport.Transport, error)

// defaultDial spawns a real child process over stdio.
func defaultDial(cfg transport.Config) (transport.Transport, error) {
	return transport.Start(cfg)
}

// ServerTool pairs a tool definition with the server that provides it.
type ServerTool struct {
	ServerName string
	Tool       protocol.ToolDefinition
}

// Stats summarizes the client's connection state.
type Stats struct {
	ConnectedServers int
	TotalTools       int
}

// Client holds one session per connected server.
type Client struct {
	log  *slog.Logger
	dial DialFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a client with the real stdio dialer.
func New() *Client {
	return NewWithDialer(defaultDial)
}

// NewWithDialer creates a client with a custom transport factory.
func NewWithDialer(dial DialFunc) *Client {
	return &Client{
		log:      logger.WithComponent("client"),
		dial:     dial,
		sessions: make(map[string]*Session),
	}
}

// Connect spawns the server, runs the initialize handshake, fetches the
// tool list, and stores the session. An existing session for the same
// name is closed and replaced.
func (c *Client) Connect(ctx context.Context, name string, cfg transport.Config) error {
	cfg.ServerName = name

	tr, err := c.dial(cfg)
	if err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}

	session := NewSession(name, tr)
	if err := session.Initialize(ctx); err != nil {
		session.Close()
		return err
	}

	// Tool listing is best effort at connect time; some servers expose
	// none until later. RefreshServerTools retries on demand.
	if _, err := session.RefreshTools(ctx); err != nil {
		c.log.Warn("could not list tools at connect", "server", name, "error", err)
	}

	c.mu.Lock()
	prior := c.sessions[name]
	c.sessions[name] = session
	c.mu.Unlock()

	if prior != nil {
		c.log.Debug("replacing existing session", "server", name)
		prior.Close()
	}

	c.log.Info("server connected", "server", name)
	return nil
}

// Disconnect closes and removes a server's session.
func (c *Client) Disconnect(name string) error {
	c.mu.Lock()
	session, ok := c.sessions[name]
	if ok {
		delete(c.sessions, name)
	}
	c.mu.Unlock()

	if !ok {
		return &ServerNotFoundError{Server: name}
	}

	session.Close()
	c.log.Info("server disconnected", "server", name)
	return nil
}

// DisconnectAll closes every session.
func (c *Client) DisconnectAll() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for name, session := range sessions {
		c.log.Debug("closing session", "server", name)
		session.Close()
	}
}

// Session returns the session for a server.
func (c *Client) Session(name string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.sessions[name]
	if !ok {
		return nil, &ServerNotFoundError{Server: name}
	}
	return session, nil
}

// IsConnected reports whether a session exists for the server.
func (c *Client) IsConnected(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[name]
	return ok
}

// ConnectedServers returns the connected server names, sorted.
func (c *Client) ConnectedServers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool invokes a tool on a named server.
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]any) ([]protocol.ContentItem, error) {
	session, err := c.Session(server)
	if err != nil {
		return nil, err
	}
	return session.CallTool(ctx, tool, args)
}

// ListServerTools returns one server's (cached) tool list.
func (c *Client) ListServerTools(ctx context.Context, server string) ([]protocol.ToolDefinition, error) {
	session, err := c.Session(server)
	if err != nil {
		return nil, err
	}
	return session.ListTools(ctx)
}

// RefreshServerTools re-fetches one server's tool list.
func (c *Client) RefreshServerTools(ctx context.Context, server string) ([]protocol.ToolDefinition, error) {
	session, err := c.Session(server)
	if err != nil {
		return nil, err
	}
	return session.RefreshTools(ctx)
}

// ListAllTools returns every connected server's tools, grouped in
// server name order.
func (c *Client) ListAllTools(ctx context.Context) ([]ServerTool, error) {
	var out []ServerTool
	for _, name := range c.ConnectedServers() {
		tools, err := c.ListServerTools(ctx, name)
		if err != nil {
			c.log.Warn("skipping server in tool listing", "server", name, "error", err)
			continue
		}
		for _, tool := range tools {
			out = append(out, ServerTool{ServerName: name, Tool: tool})
		}
	}
	return out, nil
}

// SearchTools returns tools whose name or description contains the
// query, case-insensitively.
func (c *Client) SearchTools(ctx context.Context, query string) ([]ServerTool, error) {
	all, err := c.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []ServerTool
	for _, st := range all {
		if strings.Contains(strings.ToLower(st.Tool.Name), q) ||
			strings.Contains(strings.ToLower(st.Tool.Description), q) {
			out = append(out, st)
		}
	}
	return out, nil
}

// ClientStats counts connected servers and their known tools.
func (c *Client) ClientStats(ctx context.Context) Stats {
	all, _ := c.ListAllTools(ctx)
	c.mu.RLock()
	servers := len(c.sessions)
	c.mu.RUnlock()
	return Stats{ConnectedServers: servers, TotalTools: len(all)}
}
