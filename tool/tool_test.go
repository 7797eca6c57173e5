package tool_test

import (
	"context"
	"testing"

	"loom"
	"loom/builtin"
	"loom/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExecuteSum(t *testing.T) {
	r := tool.NewRegistry()
	builtin.RegisterAll(r)

	out, err := r.Execute(context.Background(), "sum", map[string]any{
		"numbers": []any{4.0, 5.0, 6.0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": 15.0}, out)

	calls, _ := r.Stats("sum")
	assert.Equal(t, int64(1), calls)
}

func TestRegistryExecuteMissingTool(t *testing.T) {
	r := tool.NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Equal(t, loom.KindToolInvocationFailed, loom.Classify(err))
}

func TestValidateParamsIsIdempotent(t *testing.T) {
	s := builtin.SumTool{}
	args := map[string]any{"numbers": []any{1.0}}
	require.NoError(t, tool.ValidateParams(s, args))
	require.NoError(t, tool.ValidateParams(s, args))
}

func TestValidateParamsMissingRequired(t *testing.T) {
	s := builtin.SumTool{}
	err := tool.ValidateParams(s, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, loom.KindInvalidParams, loom.Classify(err))
}
