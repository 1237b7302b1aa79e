// Package config persists the MCP server inventory: which servers exist,
// how to spawn them, and whether they are enabled.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/mcpcore/paths"
)

// ServerConfig describes how to spawn one MCP server.
type ServerConfig struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args" yaml:"args"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	type alias ServerConfig
	tmp := alias{Enabled: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*s = ServerConfig(tmp)
	return nil
}

// UnmarshalYAML defaults Enabled to true when the field is absent.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type alias ServerConfig
	tmp := alias{Enabled: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*s = ServerConfig(tmp)
	return nil
}

// Config holds the server inventory
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`

	mu       sync.RWMutex
	filePath string
}

// New returns an empty inventory.
func New() *Config {
	return &Config{MCPServers: make(map[string]ServerConfig)}
}

// Load reads the config from the default path, or creates the default
// inventory if no file exists yet. Credential placeholders in env values
// are resolved from the environment either way.
func Load() (*Config, error) {
	path, err := paths.ServersFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path. The format follows
// the extension: .yaml/.yml is YAML, anything else is JSON.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.filePath = path
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &Config{filePath: path}
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ensureInitialized()
	cfg.injectCredentials()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureInitialized ensures the server map is non-nil after unmarshaling.
//
// Thread-safety: only called during single-threaded initialization,
// before the Config is shared across goroutines.
func (c *Config) ensureInitialized() {
	if c.MCPServers == nil {
		c.MCPServers = make(map[string]ServerConfig)
	}
}

// Validate checks that every server entry is spawnable.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, server := range c.MCPServers {
		if name == "" {
			return fmt.Errorf("server with empty name found")
		}
		if server.Command == "" {
			return fmt.Errorf("server %s has empty command", name)
		}
	}
	return nil
}

// Save writes the config to disk, creating the directory if needed.
// The format follows the file extension, like LoadFrom.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}

	var data []byte
	var err error
	if isYAMLPath(c.filePath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(c.filePath, data, 0644)
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// AddServer adds a server (returns false if the name already exists).
func (c *Config) AddServer(name string, server ServerConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.MCPServers[name]; exists {
		return false
	}
	c.MCPServers[name] = server
	return true
}

// RemoveServer removes a server by name.
// Returns true if the server was found and removed, false otherwise.
func (c *Config) RemoveServer(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.MCPServers[name]; !exists {
		return false
	}
	delete(c.MCPServers, name)
	return true
}

// EnableServer marks a server enabled. Returns false for unknown names.
func (c *Config) EnableServer(name string) bool {
	return c.setEnabled(name, true)
}

// DisableServer marks a server disabled. Returns false for unknown names.
func (c *Config) DisableServer(name string) bool {
	return c.setEnabled(name, false)
}

func (c *Config) setEnabled(name string, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	server, exists := c.MCPServers[name]
	if !exists {
		return false
	}
	server.Enabled = enabled
	c.MCPServers[name] = server
	return true
}

// GetServer returns a copy of one server's config.
func (c *Config) GetServer(name string) (ServerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	server, ok := c.MCPServers[name]
	if !ok {
		return ServerConfig{}, false
	}
	return copyServer(server), true
}

// Servers returns a copy of the full inventory.
func (c *Config) Servers() map[string]ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ServerConfig, len(c.MCPServers))
	for name, server := range c.MCPServers {
		out[name] = copyServer(server)
	}
	return out
}

// EnabledServers returns the enabled subset of the inventory.
func (c *Config) EnabledServers() map[string]ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ServerConfig)
	for name, server := range c.MCPServers {
		if server.Enabled {
			out[name] = copyServer(server)
		}
	}
	return out
}

// ServerNames returns all server names, sorted.
func (c *Config) ServerNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// copyServer deep-copies a server entry so callers can't mutate the
// config through returned slices and maps.
func copyServer(s ServerConfig) ServerConfig {
	out := s
	out.Args = make([]string, len(s.Args))
	copy(out.Args, s.Args)
	if s.Env != nil {
		out.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			out.Env[k] = v
		}
	}
	return out
}

func isYAMLPath(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
