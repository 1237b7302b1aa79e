package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	for _, name := range []string{"filesystem", "github", "slack", "brave-search", "google-drive"} {
		if _, ok := cfg.MCPServers[name]; !ok {
			t.Errorf("default config missing %s", name)
		}
	}

	fs, _ := cfg.GetServer("filesystem")
	if !fs.Enabled {
		t.Error("filesystem should be enabled by default")
	}
	gh, _ := cfg.GetServer("github")
	if gh.Enabled {
		t.Error("github should be disabled by default")
	}
}

func TestServerConfig_EnabledDefaultsTrue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "absent defaults true", input: `{"command":"npx","args":[]}`, want: true},
		{name: "explicit false", input: `{"command":"npx","args":[],"enabled":false}`, want: false},
		{name: "explicit true", input: `{"command":"npx","args":[],"enabled":true}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var server ServerConfig
			if err := json.Unmarshal([]byte(tt.input), &server); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if server.Enabled != tt.want {
				t.Errorf("Enabled = %v, want %v", server.Enabled, tt.want)
			}
		})
	}
}

func TestServerConfig_EnabledDefaultsTrueYAML(t *testing.T) {
	var server ServerConfig
	if err := yaml.Unmarshal([]byte("command: npx\nargs: [-y, some-server]\n"), &server); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if !server.Enabled {
		t.Error("Enabled should default to true")
	}
}

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "servers.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if _, ok := cfg.GetServer("filesystem"); !ok {
		t.Error("missing file should yield the default inventory")
	}
}

func TestSaveAndLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")

	cfg := Default()
	cfg.SetFilePath(path)
	cfg.AddServer("custom", ServerConfig{Command: "python", Args: []string{"-m", "myserver"}, Enabled: true})
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	custom, ok := loaded.GetServer("custom")
	if !ok {
		t.Fatal("custom server not round-tripped")
	}
	if custom.Command != "python" || !custom.Enabled {
		t.Errorf("custom = %+v", custom)
	}
}

func TestSaveAndLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")

	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"local": {Command: "node", Args: []string{"server.js"}, Enabled: true},
		},
		filePath: path,
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	local, ok := loaded.GetServer("local")
	if !ok {
		t.Fatal("local server not round-tripped")
	}
	if local.Command != "node" || len(local.Args) != 1 {
		t.Errorf("local = %+v", local)
	}
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(path, []byte(`{"mcpServers": not json`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_EmptyCommand(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"broken": {Command: ""},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty command")
	}
}

func TestInjectCredentials(t *testing.T) {
	t.Setenv("MCPCORE_TEST_TOKEN", "secret-value")

	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"resolved": {
				Command: "npx",
				Env:     map[string]string{"TOKEN": "${MCPCORE_TEST_TOKEN}"},
				Enabled: true,
			},
			"unresolved": {
				Command: "npx",
				Env:     map[string]string{"TOKEN": "${MCPCORE_TEST_MISSING_TOKEN}"},
				Enabled: true,
			},
			"literal": {
				Command: "npx",
				Env:     map[string]string{"TOKEN": "plain-value"},
				Enabled: true,
			},
		},
	}
	cfg.injectCredentials()

	if got := cfg.MCPServers["resolved"].Env["TOKEN"]; got != "secret-value" {
		t.Errorf("resolved TOKEN = %q, want secret-value", got)
	}
	if !cfg.MCPServers["resolved"].Enabled {
		t.Error("server with resolved credential should stay enabled")
	}

	if cfg.MCPServers["unresolved"].Enabled {
		t.Error("server with unresolved credential should be disabled")
	}

	if got := cfg.MCPServers["literal"].Env["TOKEN"]; got != "plain-value" {
		t.Errorf("literal TOKEN = %q, should be untouched", got)
	}
	if !cfg.MCPServers["literal"].Enabled {
		t.Error("server with literal env should stay enabled")
	}
}

func TestPlaceholderName(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "${GITHUB_TOKEN}", want: "GITHUB_TOKEN", wantOK: true},
		{input: "plain", want: "", wantOK: false},
		{input: "${}", want: "", wantOK: false},
		{input: "${incomplete", want: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := placeholderName(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("placeholderName(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAddRemoveServer(t *testing.T) {
	cfg := &Config{MCPServers: make(map[string]ServerConfig)}

	if !cfg.AddServer("a", ServerConfig{Command: "npx"}) {
		t.Error("first add should succeed")
	}
	if cfg.AddServer("a", ServerConfig{Command: "npx"}) {
		t.Error("duplicate add should fail")
	}
	if !cfg.RemoveServer("a") {
		t.Error("remove should succeed")
	}
	if cfg.RemoveServer("a") {
		t.Error("second remove should fail")
	}
}

func TestEnableDisableServer(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"a": {Command: "npx", Enabled: false},
		},
	}

	if !cfg.EnableServer("a") {
		t.Error("enable should succeed")
	}
	if s, _ := cfg.GetServer("a"); !s.Enabled {
		t.Error("server should be enabled")
	}

	if !cfg.DisableServer("a") {
		t.Error("disable should succeed")
	}
	if s, _ := cfg.GetServer("a"); s.Enabled {
		t.Error("server should be disabled")
	}

	if cfg.EnableServer("ghost") {
		t.Error("enabling unknown server should fail")
	}
}

func TestEnabledServers(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"on":  {Command: "npx", Enabled: true},
			"off": {Command: "npx", Enabled: false},
		},
	}

	enabled := cfg.EnabledServers()
	if len(enabled) != 1 {
		t.Fatalf("len(enabled) = %d, want 1", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("enabled set should contain 'on'")
	}
}

func TestServerNames_Sorted(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"zebra":  {Command: "npx"},
			"alpaca": {Command: "npx"},
			"mango":  {Command: "npx"},
		},
	}

	names := cfg.ServerNames()
	want := []string{"alpaca", "mango", "zebra"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestGetServer_ReturnsCopy(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"a": {Command: "npx", Args: []string{"-y", "pkg"}, Env: map[string]string{"K": "v"}},
		},
	}

	got, _ := cfg.GetServer("a")
	got.Args[0] = "mutated"
	got.Env["K"] = "mutated"

	orig, _ := cfg.GetServer("a")
	if orig.Args[0] != "-y" {
		t.Error("mutating the returned args affected the config")
	}
	if orig.Env["K"] != "v" {
		t.Error("mutating the returned env affected the config")
	}
}
