package ctxmgr_test

import (
	"context"
	"testing"

	"loom"
	"loom/builtin"
	"loom/ctxmgr"
	"loom/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct{ name string }

func (f fakeAgent) Name() string { return f.name }

func TestNodeContextRoundTrip(t *testing.T) {
	m := ctxmgr.New(tool.NewRegistry(), nil)
	m.UpdateNodeContext("n0", map[string]any{"sum": 15.0})
	assert.Equal(t, map[string]any{"sum": 15.0}, m.GetNodeContext("n0"))
	assert.Nil(t, m.GetNodeContext("missing"))
}

func TestExecuteToolDelegatesToRegistry(t *testing.T) {
	r := tool.NewRegistry()
	builtin.RegisterAll(r)
	m := ctxmgr.New(r, nil)

	out, err := m.ExecuteTool(context.Background(), "sum", map[string]any{"numbers": []any{1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": 3.0}, out)
}

func TestRegisterAgentIdempotence(t *testing.T) {
	m := ctxmgr.New(tool.NewRegistry(), nil)
	a := &fakeAgent{name: "researcher"}

	require.NoError(t, m.RegisterAgent(a))
	require.NoError(t, m.RegisterAgent(a))

	err := m.RegisterAgent(&fakeAgent{name: "researcher"})
	require.Error(t, err)
	assert.Equal(t, loom.KindInvalidParams, loom.Classify(err))
}

func TestSmartContextCompressionRequiresSummariser(t *testing.T) {
	m := ctxmgr.New(tool.NewRegistry(), nil)
	_, err := m.SmartContextCompression(context.Background(), nil, "summarize", 100)
	require.Error(t, err)
}
