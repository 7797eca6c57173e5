package chain_test

import (
	"encoding/json"
	"testing"

	"loom"
	"loom/chain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specJSON(t *testing.T, doc map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return b
}

func TestFactoryBuildComputesStableTopologyHash(t *testing.T) {
	f := chain.NewFactory()

	specA := specJSON(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum"},
			{"id": "b", "type": "tool", "tool_name": "sum", "dependencies": []string{"a"}},
		},
	})
	specB := specJSON(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "b", "type": "tool", "tool_name": "sum", "dependencies": []string{"a"}},
			{"id": "a", "type": "tool", "tool_name": "sum"},
		},
	})

	cA, err := f.Build(specA)
	require.NoError(t, err)
	cB, err := f.Build(specB)
	require.NoError(t, err)

	assert.Equal(t, cA.Metadata.TopologyHash, cB.Metadata.TopologyHash)
	assert.Equal(t, 2, cA.Metadata.NodeCount)
	assert.Equal(t, 1, cA.Metadata.EdgeCount)
	assert.Equal(t, "chain_"+cA.Metadata.TopologyHash[:8], cA.Metadata.ChainID)
}

func TestFactoryBuildRejectsEmptyWorkflow(t *testing.T) {
	f := chain.NewFactory()
	_, err := f.Build(specJSON(t, map[string]any{"nodes": []map[string]any{}}))
	require.Error(t, err)
	assert.Equal(t, loom.KindEmptyWorkflow, loom.Classify(err))
}

func TestFactoryBuildRejectsDuplicateNodeID(t *testing.T) {
	f := chain.NewFactory()
	_, err := f.Build(specJSON(t, map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum"},
			{"id": "a", "type": "tool", "tool_name": "sum"},
		},
	}))
	require.Error(t, err)
	assert.Equal(t, loom.KindDuplicateNodeID, loom.Classify(err))
}

func TestFactoryBuildRejectsUnsupportedVersion(t *testing.T) {
	f := chain.NewFactory()
	_, err := f.Build(specJSON(t, map[string]any{
		"version": "0.9.0",
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum"},
		},
	}))
	require.Error(t, err)
	assert.Equal(t, loom.KindUnsupportedVersion, loom.Classify(err))
}

func TestFactoryBuildRunsRegisteredMigrator(t *testing.T) {
	f := chain.NewFactory(chain.WithMigrator(legacyMigrator{}))
	c, err := f.Build(specJSON(t, map[string]any{
		"version": "0.9.0",
		"nodes": []map[string]any{
			{"id": "a", "type": "tool", "tool_name": "sum"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, chain.DefaultTargetVersion, c.Metadata.Version)
}

type legacyMigrator struct{}

func (legacyMigrator) FromVersion() string { return "0.9.0" }
func (legacyMigrator) Migrate(raw map[string]any) (map[string]any, error) { return raw, nil }
