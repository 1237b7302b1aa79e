package config

import (
	"os"
	"strings"
)

// Default builds the out-of-the-box inventory: the filesystem server
// enabled, plus the common credentialed servers present but disabled
// until their tokens resolve.
func Default() *Config {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"filesystem": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
				Enabled: true,
			},
			"github": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-github"},
				Env: map[string]string{
					"GITHUB_PERSONAL_ACCESS_TOKEN": "${GITHUB_PERSONAL_ACCESS_TOKEN}",
				},
				Enabled: false,
			},
			"slack": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-slack"},
				Env: map[string]string{
					"SLACK_BOT_TOKEN": "${SLACK_BOT_TOKEN}",
				},
				Enabled: false,
			},
			"brave-search": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-brave-search"},
				Env: map[string]string{
					"BRAVE_API_KEY": "${BRAVE_API_KEY}",
				},
				Enabled: false,
			},
			"google-drive": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-gdrive"},
				Enabled: false,
			},
		},
	}
	cfg.injectCredentials()
	return cfg
}

// injectCredentials resolves ${VAR} placeholders in env values from the
// process environment. A server with an unresolved placeholder is forced
// disabled so it can't be started with a dangling credential.
//
// Thread-safety: only called during single-threaded initialization.
func (c *Config) injectCredentials() {
	for name, server := range c.MCPServers {
		unresolved := false
		for key, value := range server.Env {
			placeholder, ok := placeholderName(value)
			if !ok {
				continue
			}
			if resolved := os.Getenv(placeholder); resolved != "" {
				server.Env[key] = resolved
			} else {
				unresolved = true
			}
		}
		if unresolved && server.Enabled {
			server.Enabled = false
			c.MCPServers[name] = server
		}
	}
}

// placeholderName extracts VAR from a "${VAR}" value.
func placeholderName(value string) (string, bool) {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") && len(value) > 3 {
		return value[2 : len(value)-1], true
	}
	return "", false
}
