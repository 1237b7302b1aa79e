// Package registry bridges connected servers' tools into the prefixed
// tool-id namespace and exports them as LLM function definitions.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/protocol"
)

// ParameterType is the coarse type of a tool parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
)

// Parameter is one argument a tool accepts.
type Parameter struct {
	Name        string
	Type        ParameterType
	Required    bool
	Description string
	Default     any
}

// Tool is a server tool lifted into the prefixed namespace.
type Tool struct {
	ID          string // mcp_<server>_<tool>
	Name        string
	ServerName  string
	Description string
	Parameters  []Parameter
}

// FunctionDefinition is a tool in LLM function-calling form. Parameters
// carries the tool's raw JSON schema.
type FunctionDefinition struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  protocol.InputSchema `json:"parameters"`
}

// ToolID builds the prefixed id for a server's tool.
func ToolID(server, tool string) string {
	return fmt.Sprintf("mcp_%s_%s", server, tool)
}

// Registry exposes the tools of every connected server.
type Registry struct {
	client *client.Client
}

// New creates a registry over a client.
func New(c *client.Client) *Registry {
	return &Registry{client: c}
}

// AllTools lists every connected server's tools in the prefixed
// namespace, grouped by server name.
func (r *Registry) AllTools(ctx context.Context) ([]Tool, error) {
	serverTools, err := r.client.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(serverTools))
	for _, st := range serverTools {
		out = append(out, toTool(st.ServerName, st.Tool))
	}
	return out, nil
}

// ServerTools lists one server's tools in the prefixed namespace.
func (r *Registry) ServerTools(ctx context.Context, server string) ([]Tool, error) {
	tools, err := r.client.ListServerTools(ctx, server)
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toTool(server, tool))
	}
	return out, nil
}

// SearchTools returns prefixed tools matching the query.
func (r *Registry) SearchTools(ctx context.Context, query string) ([]Tool, error) {
	matches, err := r.client.SearchTools(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(matches))
	for _, st := range matches {
		out = append(out, toTool(st.ServerName, st.Tool))
	}
	return out, nil
}

// FunctionDefinitions exports every connected tool for LLM function
// calling.
func (r *Registry) FunctionDefinitions(ctx context.Context) ([]FunctionDefinition, error) {
	serverTools, err := r.client.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FunctionDefinition, 0, len(serverTools))
	for _, st := range serverTools {
		out = append(out, FunctionDefinition{
			Name:        ToolID(st.ServerName, st.Tool.Name),
			Description: st.Tool.Description,
			Parameters:  st.Tool.InputSchema,
		})
	}
	return out, nil
}

// toTool lifts a wire tool definition into the prefixed namespace. A tool
// without a description gets a generic one naming its server.
func toTool(server string, def protocol.ToolDefinition) Tool {
	description := def.Description
	if description == "" {
		description = fmt.Sprintf("MCP tool from %s server", server)
	}
	return Tool{
		ID:          ToolID(server, def.Name),
		Name:        def.Name,
		ServerName:  server,
		Description: description,
		Parameters:  ExtractParameters(def.InputSchema),
	}
}

// ExtractParameters flattens a tool's input schema into a parameter
// list, sorted by name. Unknown schema types fall back to string.
func ExtractParameters(schema protocol.InputSchema) []Parameter {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	out := make([]Parameter, 0, len(schema.Properties))
	for name, prop := range schema.Properties {
		out = append(out, Parameter{
			Name:        name,
			Type:        mapSchemaType(prop.Type),
			Required:    required[name],
			Description: prop.Description,
			Default:     prop.Default,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func mapSchemaType(t string) ParameterType {
	switch strings.ToLower(t) {
	case "string":
		return TypeString
	case "integer", "number":
		return TypeInteger
	case "boolean":
		return TypeBoolean
	case "object":
		return TypeObject
	case "array":
		return TypeArray
	default:
		return TypeString
	}
}
