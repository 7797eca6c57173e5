package exec_test

import (
	"context"
	"encoding/json"
	"testing"

	"loom"
	"loom/builtin"
	"loom/chain"
	"loom/ctxmgr"
	"loom/exec"
	"loom/graph"
	"loom/llm"
	"loom/registry"
	"loom/schedule"
	"loom/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(t *testing.T, stub llm.Service) (*schedule.Scheduler, *chain.Factory) {
	t.Helper()
	toolReg := tool.NewRegistry()
	builtin.RegisterAll(toolReg)
	cm := ctxmgr.New(toolReg, nil)

	reg := registry.New()
	factory := chain.NewFactory()
	deps := &exec.Deps{
		CtxMgr:           cm,
		LLMSvc:           stub,
		Factory:          factory,
		Registry:         reg,
		SchedulerOptions: schedule.DefaultOptions(),
	}
	exec.RegisterAll(reg, deps)

	return schedule.New(reg, cm, nil), factory
}

func buildAndValidate(t *testing.T, factory *chain.Factory, doc map[string]any) *graph.Validated {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	c, err := factory.Build(b)
	require.NoError(t, err)
	v, err := graph.Validate(c)
	require.NoError(t, err)
	return v
}

// S1 — SumTool linear chain.
func TestScenarioS1SumToolChain(t *testing.T) {
	sched, factory := newRun(t, nil)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "sum1", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{4.0, 5.0, 6.0}}},
		},
	})

	result := sched.Run(context.Background(), v)
	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"sum": 15.0}, result.Output["sum1"].Output)
}

// S2 — depth ceiling.
func TestScenarioS2DepthCeiling(t *testing.T) {
	sched, factory := newRun(t, nil)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "n0", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}},
			{"id": "n1", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}, "dependencies": []string{"n0"}},
			{"id": "n2", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{1.0}}, "dependencies": []string{"n1"}},
		},
	})

	result := sched.RunWithOptions(context.Background(), v, schedule.Options{DepthCeiling: 0})
	require.False(t, result.Success)
	assert.Equal(t, loom.KindDepthCeilingExceeded, result.ErrorKind)
	_, hasN0 := result.Output["n0"]
	_, hasN2 := result.Output["n2"]
	assert.True(t, hasN0)
	assert.False(t, hasN2)
}

// S3 — placeholder substitution.
func TestScenarioS3PlaceholderSubstitution(t *testing.T) {
	sched, factory := newRun(t, nil)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "n0", "type": "tool", "tool_name": "sum", "tool_args": map[string]any{"numbers": []any{42.0}}},
			{"id": "n1", "type": "tool", "tool_name": "echo", "tool_args": map[string]any{"value": "{n0.sum}"}, "dependencies": []string{"n0"}},
		},
	})

	result := sched.Run(context.Background(), v)
	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"value": "42"}, result.Output["n1"].Output)
}

// S4 — allowed_tools whitelist, positive.
func TestScenarioS4WhitelistPositive(t *testing.T) {
	stub := &llm.StubService{Responses: []string{"OK"}}
	sched, factory := newRun(t, stub)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "ai1", "type": "ai", "prompt": "go", "allowed_tools": []string{"my_tool"}, "max_rounds": 3},
		},
	})

	result := sched.Run(context.Background(), v)
	require.True(t, result.Success)
	assert.Equal(t, "OK", result.Output["ai1"].Output)
}

// S5 — allowed_tools whitelist, negative.
func TestScenarioS5WhitelistNegative(t *testing.T) {
	stub := &llm.StubService{Responses: []string{`{"tool_name":"other_tool","arguments":{}}`}}
	sched, factory := newRun(t, stub)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "ai1", "type": "ai", "prompt": "go", "allowed_tools": []string{"my_tool"}, "max_rounds": 3},
		},
	})

	result := sched.Run(context.Background(), v)
	require.False(t, result.Success)
	assert.Equal(t, loom.KindToolNotAllowed, result.ErrorKind)
}

// S6 — agent cycle via as_tool self-reference.
func TestScenarioS6AgentCycle(t *testing.T) {
	stub := &llm.StubService{Responses: []string{`{"tool_name":"A","arguments":{"input":"go"}}`}}
	sched, factory := newRun(t, stub)
	v := buildAndValidate(t, factory, map[string]any{
		"nodes": []map[string]any{
			{"id": "A", "type": "ai", "prompt": "go", "allowed_tools": []string{"A"}, "max_rounds": 3},
		},
	})

	result := sched.Run(context.Background(), v)
	require.False(t, result.Success)
	assert.Equal(t, loom.KindAgentCycle, result.ErrorKind)
}
