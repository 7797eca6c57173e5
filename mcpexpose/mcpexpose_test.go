package mcpexpose

import (
	"context"
	"testing"

	"loom/builtin"
	"loom/tool"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntoToolDerivesSchemaFromParametersSchema(t *testing.T) {
	a := IntoTool(builtin.SumTool{}).(*adapted)
	def := a.Definition()

	assert.Equal(t, "sum", def.Name)
	assert.Equal(t, "object", def.InputSchema.Type)
	assert.Equal(t, []string{"numbers"}, def.InputSchema.Required)
	assert.Contains(t, def.InputSchema.Properties, "numbers")
}

func TestAdaptedHandleRunsUnderlyingTool(t *testing.T) {
	a := IntoTool(builtin.SumTool{}).(*adapted)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"numbers": []any{1.0, 2.0, 3.0}}

	result, err := a.handle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
}

func TestAdaptedHandleRejectsMissingRequiredArgument(t *testing.T) {
	a := IntoTool(builtin.SumTool{}).(*adapted)
	_, err := a.handle(context.Background(), mcp.CallToolRequest{})
	require.Error(t, err)
}

func TestFromRegistryAdaptsEveryRegisteredTool(t *testing.T) {
	reg := tool.NewRegistry()
	builtin.RegisterAll(reg)

	adapted := FromRegistry(reg)
	assert.Len(t, adapted, len(reg.All()))
}
