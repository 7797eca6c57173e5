package agent_test

import (
	"context"
	"testing"

	"loom"
	"loom/agent"
	"loom/ctxmgr"
	"loom/llm"
	"loom/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFinalAnswerWithoutToolCall(t *testing.T) {
	cm := ctxmgr.New(tool.NewRegistry(), nil)
	stub := &llm.StubService{Responses: []string{"OK"}}
	a := agent.New(agent.Config{Name: "ai1", MaxRounds: 3}, stub, cm, nil, nil)

	ctx := agent.WithCallStack(context.Background())
	result, err := a.Run(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Answer)
	assert.False(t, result.RoundsExhausted)
}

func TestRunRejectsDisallowedTool(t *testing.T) {
	cm := ctxmgr.New(tool.NewRegistry(), nil)
	stub := &llm.StubService{Responses: []string{`{"tool_name":"other_tool","arguments":{}}`}}
	a := agent.New(agent.Config{Name: "ai1", MaxRounds: 3, AllowedTools: []string{"my_tool"}}, stub, cm, nil, nil)

	ctx := agent.WithCallStack(context.Background())
	_, err := a.Run(ctx, "go")
	require.Error(t, err)
	assert.Equal(t, loom.KindToolNotAllowed, loom.Classify(err))
}

func TestSelfCallingAgentFailsWithAgentCycle(t *testing.T) {
	cm := ctxmgr.New(tool.NewRegistry(), nil)
	stub := &llm.StubService{Responses: []string{`{"tool_name":"A","arguments":{"input":"go"}}`}}

	a := agent.New(agent.Config{Name: "A", MaxRounds: 3, AllowedTools: []string{"A"}}, stub, cm, nil, nil)
	cm.RegisterTool(agent.AsTool{Agent: a})

	ctx := agent.WithCallStack(context.Background())
	_, err := a.Run(ctx, "start")
	require.Error(t, err)
	assert.Equal(t, loom.KindAgentCycle, loom.Classify(err))
}
