// Package client maintains initialized MCP sessions, one per server, and
// exposes tool and resource operations across them.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/protocol"
	"github.com/zhubert/mcpcore/transport"
)

// ClientName identifies this client in the initialize handshake.
const ClientName = "mcpcore"

// ClientVersion is reported to servers during initialize.
const ClientVersion = "1.0.0"

// Session is one initialized connection to a server. It caches the
// server's tool list after the first fetch; RefreshTools re-fetches.
type Session struct {
	serverName string
	transport  transport.Transport
	log        *slog.Logger

	mu          sync.RWMutex
	initialized bool
	serverInfo  protocol.ServerInfo
	tools       []protocol.ToolDefinition
}

// NewSession wraps an established transport. The session is not usable
// until Initialize completes.
func NewSession(serverName string, tr transport.Transport) *Session {
	return &Session{
		serverName: serverName,
		transport:  tr,
		log:        logger.WithServer(serverName).With("component", "session"),
	}
}

// ServerName returns the server this session is connected to.
func (s *Session) ServerName() string {
	return s.serverName
}

// ServerInfo returns the identity the server reported during initialize.
func (s *Session) ServerInfo() protocol.ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverInfo
}

// IsAlive reports whether the underlying transport still holds a process.
func (s *Session) IsAlive() bool {
	return s.transport.IsAlive()
}

// Initialize performs the MCP handshake: an initialize request followed
// by the initialized notification.
func (s *Session) Initialize(ctx context.Context) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities: protocol.Capability{
			Tools: &protocol.ToolCapability{},
		},
		ClientInfo: protocol.ClientInfo{
			Name:    ClientName,
			Version: ClientVersion,
		},
	}

	raw, err := s.transport.SendRequest(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", s.serverName, err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode initialize result from %s: %w", s.serverName, err)
	}

	s.mu.Lock()
	s.initialized = true
	s.serverInfo = result.ServerInfo
	s.mu.Unlock()

	s.log.Info("session initialized",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion)

	if err := s.transport.SendNotification(protocol.NotificationInitialized, nil); err != nil {
		return fmt.Errorf("send initialized notification to %s: %w", s.serverName, err)
	}
	return nil
}

// ListTools returns the cached tool list, fetching it on first use.
func (s *Session) ListTools(ctx context.Context) ([]protocol.ToolDefinition, error) {
	s.mu.RLock()
	cached := s.tools
	s.mu.RUnlock()
	if cached != nil {
		out := make([]protocol.ToolDefinition, len(cached))
		copy(out, cached)
		return out, nil
	}
	return s.RefreshTools(ctx)
}

// RefreshTools re-fetches the tool list from the server and replaces
// the cache.
func (s *Session) RefreshTools(ctx context.Context) ([]protocol.ToolDefinition, error) {
	raw, err := s.transport.SendRequest(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", s.serverName, err)
	}

	var result protocol.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool list from %s: %w", s.serverName, err)
	}

	s.mu.Lock()
	s.tools = result.Tools
	s.mu.Unlock()

	s.log.Debug("tool list refreshed", "count", len(result.Tools))

	out := make([]protocol.ToolDefinition, len(result.Tools))
	copy(out, result.Tools)
	return out, nil
}

// CallTool invokes a tool and returns its content. A result flagged
// isError becomes a ToolExecutionError carrying the text content.
func (s *Session) CallTool(ctx context.Context, tool string, args map[string]any) ([]protocol.ContentItem, error) {
	params := protocol.ToolCallParams{
		Name:      tool,
		Arguments: args,
	}

	raw, err := s.transport.SendRequest(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, fmt.Errorf("call tool %s on %s: %w", tool, s.serverName, err)
	}

	var result protocol.ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool result from %s: %w", s.serverName, err)
	}

	if result.IsError {
		return nil, &ToolExecutionError{
			Server:  s.serverName,
			Tool:    tool,
			Message: contentText(result.Content),
		}
	}
	return result.Content, nil
}

// ListResources fetches the server's resource list.
func (s *Session) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	raw, err := s.transport.SendRequest(ctx, protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, fmt.Errorf("list resources on %s: %w", s.serverName, err)
	}

	var result protocol.ResourcesListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resource list from %s: %w", s.serverName, err)
	}
	return result.Resources, nil
}

// ReadResource reads one resource by URI.
func (s *Session) ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContent, error) {
	raw, err := s.transport.SendRequest(ctx, protocol.MethodResourcesRead, protocol.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("read resource %s on %s: %w", uri, s.serverName, err)
	}

	var result protocol.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resource content from %s: %w", s.serverName, err)
	}
	return result.Contents, nil
}

// Close shuts down the underlying transport.
func (s *Session) Close() {
	s.log.Debug("closing session")
	s.transport.Shutdown()
}

// contentText joins the text portions of tool output into one string.
func contentText(items []protocol.ContentItem) string {
	var parts []string
	for _, item := range items {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "\n")
}
