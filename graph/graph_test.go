package graph_test

import (
	"encoding/json"
	"testing"

	"loom"
	"loom/chain"
	"loom/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, doc map[string]any) *chain.Chain {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	c, err := chain.NewFactory().Build(b)
	require.NoError(t, err)
	return c
}

func TestValidateAssignsLevels(t *testing.T) {
	c := build(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum"},
			{"id": "b", "type": "tool", "tool_name": "sum", "dependencies": []string{"a"}},
			{"id": "c", "type": "tool", "tool_name": "sum", "dependencies": []string{"a", "b"}},
		},
	})

	v, err := graph.Validate(c)
	require.NoError(t, err)
	require.Len(t, v.Levels, 3)
	assert.Equal(t, loom.NodeID("a"), v.Levels[0][0].ID)
	assert.Equal(t, loom.NodeID("b"), v.Levels[1][0].ID)
	assert.Equal(t, loom.NodeID("c"), v.Levels[2][0].ID)
}

func TestValidateDetectsCycle(t *testing.T) {
	c := build(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum", "dependencies": []string{"b"}},
			{"id": "b", "type": "tool", "tool_name": "sum", "dependencies": []string{"a"}},
		},
	})

	_, err := graph.Validate(c)
	require.Error(t, err)
	assert.Equal(t, loom.KindCycleDetected, loom.Classify(err))
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	c := build(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum", "dependencies": []string{"ghost"}},
		},
	})

	_, err := graph.Validate(c)
	require.Error(t, err)
	assert.Equal(t, loom.KindUnknownDependency, loom.Classify(err))
}

func TestValidateWarnsOnSchemaMismatch(t *testing.T) {
	c := build(t, map[string]any{
		"nodes": []map[string]any{
			{
				"id": "a", "type": "tool", "tool_name": "sum",
				"output_schema": map[string]any{"type": "number"},
			},
			{
				"id": "b", "type": "tool", "tool_name": "sum", "dependencies": []string{"a"},
				"input_schema": map[string]any{"type": "string"},
			},
		},
	})

	v, err := graph.Validate(c)
	require.NoError(t, err)
	require.Len(t, v.Warnings, 1)
	assert.Equal(t, loom.KindSchemaMismatch, v.Warnings[0].Kind)
}
