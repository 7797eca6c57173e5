package registry_test

import (
	"context"
	"testing"

	"loom"
	"loom/nodecfg"
	"loom/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookupResolvesAlias(t *testing.T) {
	r := registry.New()
	called := false
	r.Register(nodecfg.KindTool, func(_ context.Context, _ loom.RunContext, _ *nodecfg.Node, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	fn, ok := r.Lookup(nodecfg.KindSkill)
	require.True(t, ok)
	_, err := fn(context.Background(), loom.RunContext{}, &nodecfg.Node{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLookupMissingKind(t *testing.T) {
	r := registry.New()
	_, ok := r.Lookup(nodecfg.KindLoop)
	assert.False(t, ok)
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := registry.New()
	r.Register(nodecfg.KindTool, func(_ context.Context, _ loom.RunContext, _ *nodecfg.Node, _ map[string]any) (any, error) {
		return "first", nil
	})
	r.Register(nodecfg.KindTool, func(_ context.Context, _ loom.RunContext, _ *nodecfg.Node, _ map[string]any) (any, error) {
		return "second", nil
	})
	fn, ok := r.Lookup(nodecfg.KindTool)
	require.True(t, ok)
	out, _ := fn(context.Background(), loom.RunContext{}, &nodecfg.Node{}, nil)
	assert.Equal(t, "second", out)
}
