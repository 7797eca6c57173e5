package schedule_test

import (
	"context"
	"encoding/json"
	"testing"

	"loom"
	"loom/chain"
	"loom/ctxmgr"
	"loom/graph"
	"loom/nodecfg"
	"loom/registry"
	"loom/schedule"
	"loom/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, doc map[string]any) *graph.Validated {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	c, err := chain.NewFactory().Build(b)
	require.NoError(t, err)
	v, err := graph.Validate(c)
	require.NoError(t, err)
	return v
}

func sumExecutor(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
	cfg := n.Config.(*nodecfg.ToolConfig)
	total := 0.0
	if nums, ok := cfg.ToolArgs["numbers"].([]any); ok {
		for _, v := range nums {
			f, _ := v.(float64)
			total += f
		}
	}
	return map[string]any{"sum": total}, nil
}

func newScheduler() (*schedule.Scheduler, *registry.Registry) {
	reg := registry.New()
	reg.Register(nodecfg.KindTool, sumExecutor)
	cm := ctxmgr.New(tool.NewRegistry(), nil)
	return schedule.New(reg, cm, nil), reg
}

func TestRunLinearChainSucceeds(t *testing.T) {
	sched, _ := newScheduler()
	v := validate(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "sum1", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{4.0, 5.0, 6.0}}},
		},
	})

	result := sched.Run(context.Background(), v)
	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"sum": 15.0}, result.Output["sum1"].Output)
}

func TestRunDepthCeilingStopsExecution(t *testing.T) {
	sched, _ := newScheduler()
	v := validate(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "n0", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}},
			{"id": "n1", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}, "dependencies": []string{"n0"}},
			{"id": "n2", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}, "dependencies": []string{"n1"}},
		},
	})

	result := sched.RunWithOptions(context.Background(), v, schedule.Options{DepthCeiling: 0, TokenCeiling: 0})
	require.False(t, result.Success)
	assert.Equal(t, loom.KindDepthCeilingExceeded, result.ErrorKind)
	_, hasN0 := result.Output["n0"]
	_, hasN2 := result.Output["n2"]
	assert.True(t, hasN0)
	assert.False(t, hasN2)
}

func TestRunMarksDescendantsUpstreamFailed(t *testing.T) {
	reg := registry.New()
	reg.Register(nodecfg.KindTool, func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg := n.Config.(*nodecfg.ToolConfig)
		if cfg.ToolName == "fail" {
			return nil, loom.NewError(loom.KindToolInvocationFailed, "fail", assertErr{})
		}
		return map[string]any{"ok": true}, nil
	})
	cm := ctxmgr.New(tool.NewRegistry(), nil)
	sched := schedule.New(reg, cm, nil)

	v := validate(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "n0", "type": "tool", "tool_name": "fail"},
			{"id": "n1", "type": "tool", "tool_name": "ok", "dependencies": []string{"n0"}},
		},
	})

	result := sched.Run(context.Background(), v)
	require.False(t, result.Success)
	assert.Equal(t, loom.KindUpstreamFailed, result.Output["n1"].ErrorKind)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
