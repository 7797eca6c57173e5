// Package mcpexpose turns any registered loom/tool.Tool into an MCP
// server tool, generalising the teacher's mcp/adapter.go (which wrapped a
// single compile-time heart.NodeDefinition[In, Out]) into a wrapper over
// the dynamic tool.Tool interface: schemas are read from
// Tool.ParametersSchema() at wrap time instead of being hand-authored per
// call site, and request/response mapping is generic JSON rather than a
// per-tool In/Out pair.
package mcpexpose

import (
	"context"
	"encoding/json"

	"loom/tool"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Adapted is an MCP-ready wrapper around a loom/tool.Tool, mirroring the
// teacher's MCPTool interface (Definition + an unexported request
// handler consumed only by Server.AddTools).
type Adapted interface {
	Definition() mcp.Tool
	handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// IntoTool adapts t into an MCP tool, deriving its InputSchema from
// t.ParametersSchema() (nil means an empty-object schema, matching
// tool.Tool's "no validation beyond Run" contract).
func IntoTool(t tool.Tool) Adapted {
	return &adapted{tool: t, schema: toMCPTool(t)}
}

type adapted struct {
	tool   tool.Tool
	schema mcp.Tool
}

func (a *adapted) Definition() mcp.Tool { return a.schema }

func (a *adapted) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := tool.ValidateParams(a.tool, args); err != nil {
		return nil, err
	}
	out, err := a.tool.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	text, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(text))},
	}, nil
}

// FromRegistry adapts every tool currently registered in r. Registration
// is expected to happen before an MCP server starts serving, matching
// tool.Registry's own "register before run" contract.
func FromRegistry(r *tool.Registry) []Adapted {
	all := r.All()
	out := make([]Adapted, 0, len(all))
	for _, t := range all {
		out = append(out, IntoTool(t))
	}
	return out
}

func toMCPTool(t tool.Tool) mcp.Tool {
	schema := t.ParametersSchema()
	if schema == nil {
		return mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: mcp.ToolInputSchema{Type: "object"},
		}
	}
	return mcp.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: propertiesOf(schema),
			Required:   schema.Required,
		},
	}
}

func propertiesOf(schema *jsonschema.Definition) map[string]interface{} {
	props := make(map[string]interface{}, len(schema.Properties))
	for name, def := range schema.Properties {
		props[name] = propertyDefinition(def)
	}
	return props
}

func propertyDefinition(def jsonschema.Definition) map[string]interface{} {
	out := map[string]interface{}{"type": string(def.Type)}
	if def.Description != "" {
		out["description"] = def.Description
	}
	if len(def.Enum) > 0 {
		out["enum"] = def.Enum
	}
	return out
}
