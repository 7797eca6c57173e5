package condeval_test

import (
	"testing"

	"loom"
	"loom/condeval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateComparison(t *testing.T) {
	ctx := map[loom.NodeID]any{
		"n0": map[string]any{"x": 42.0},
	}
	ok, err := condeval.Evaluate("n0.x > 10 && n0.x < 100", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateStringEquality(t *testing.T) {
	ctx := map[loom.NodeID]any{"n0": map[string]any{"status": "ready"}}
	ok, err := condeval.Evaluate(`n0.status == "ready"`, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateRejectsUnsupportedOperator(t *testing.T) {
	ctx := map[loom.NodeID]any{"n0": map[string]any{"x": 1.0}}
	_, err := condeval.Evaluate("n0.x + 1 > 0", ctx)
	require.Error(t, err)
	assert.Equal(t, loom.KindConditionExpressionTooComplex, loom.Classify(err))
}

func TestEvaluateRejectsOversizedLiteral(t *testing.T) {
	ctx := map[loom.NodeID]any{"n0": map[string]any{"x": 1.0}}
	_, err := condeval.Evaluate("n0.x > 1234567890123456", ctx)
	require.Error(t, err)
	assert.Equal(t, loom.KindConditionExpressionTooComplex, loom.Classify(err))
}

func TestEvaluateUnresolvedIdentifier(t *testing.T) {
	_, err := condeval.Evaluate("missing.field == 1", map[loom.NodeID]any{})
	require.Error(t, err)
	assert.Equal(t, loom.KindUnresolvedPlaceholder, loom.Classify(err))
}
