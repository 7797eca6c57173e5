// Package chain implements the Chain Factory (spec.md §4.5): parsing a
// JSON workflow spec, running version migration, building typed node
// configs via loom/nodecfg, and computing the topology hash and
// ChainMetadata.
package chain

import (
	"encoding/json"
	"fmt"
	"sort"

	"loom"
	"loom/nodecfg"

	"loom/store"
)

// DefaultTargetVersion is the version every spec is migrated to before
// parsing, per spec.md §4.5 step 1.
const DefaultTargetVersion = "1.0.0"

// Spec is the canonical on-the-wire workflow shape, per spec.md §6.
type Spec struct {
	ChainID     string            `json:"chain_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Version     string            `json:"version,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Nodes       []json.RawMessage `json:"nodes"`
}

// Metadata is the ChainMetadata record, per spec.md §3.
type Metadata struct {
	ChainID      string   `json:"chain_id"`
	Name         string   `json:"name,omitempty"`
	Version      string   `json:"version"`
	NodeCount    int      `json:"node_count"`
	EdgeCount    int      `json:"edge_count"`
	TopologyHash string   `json:"topology_hash"`
	Tags         []string `json:"tags,omitempty"`
}

// Chain is the executable result of the factory: the parsed node list,
// its metadata, and any chain-level tool whitelist.
type Chain struct {
	Nodes      []*nodecfg.Node
	Metadata   Metadata
	ChainTools []string // chain-level tool visibility, per spec.md §3 precedence chain
}

// ByID indexes a chain's nodes by ID.
func (c *Chain) ByID() map[loom.NodeID]*nodecfg.Node {
	m := make(map[loom.NodeID]*nodecfg.Node, len(c.Nodes))
	for _, n := range c.Nodes {
		m[n.ID] = n
	}
	return m
}

// Migrator upgrades a raw spec document from one version to the next.
// Registered per source version, per spec.md §6's migration contract.
type Migrator interface {
	// FromVersion is the version this migrator accepts as input.
	FromVersion() string
	// Migrate returns a new raw document after applying this migrator's
	// transform. Factory.Build then sets the document's "version" to the
	// factory's target version.
	Migrate(raw map[string]any) (map[string]any, error)
}

// Factory builds Chains from raw JSON specs.
type Factory struct {
	migrators     map[string]Migrator
	targetVersion string
	logger        store.Logger
}

// Option configures a Factory, matching the teacher's functional-options
// convention (heart.go's WorkflowOption).
type Option func(*Factory)

// WithMigrator registers m under its FromVersion.
func WithMigrator(m Migrator) Option {
	return func(f *Factory) { f.migrators[m.FromVersion()] = m }
}

// WithTargetVersion overrides DefaultTargetVersion.
func WithTargetVersion(v string) Option {
	return func(f *Factory) { f.targetVersion = v }
}

// WithLogger attaches a store.Logger; defaults to a no-op.
func WithLogger(l store.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory builds a Factory. The identity migrator for
// DefaultTargetVersion always ships, per DESIGN.md's Open Question
// decision.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		migrators:     make(map[string]Migrator),
		targetVersion: DefaultTargetVersion,
		logger:        store.NopLogger{},
	}
	f.migrators[DefaultTargetVersion] = identityMigrator{version: DefaultTargetVersion}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type identityMigrator struct{ version string }

func (m identityMigrator) FromVersion() string { return m.version }
func (m identityMigrator) Migrate(raw map[string]any) (map[string]any, error) { return raw, nil }

// Build parses raw into a Chain, per spec.md §4.5's six steps.
func (f *Factory) Build(raw json.RawMessage) (*Chain, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, loom.NewError(loom.KindUnsupportedVersion, "", fmt.Errorf("invalid spec JSON: %w", err))
	}

	version, _ := doc["version"].(string)
	if version == "" {
		version = DefaultTargetVersion
	}
	if version != f.targetVersion {
		migrator, ok := f.migrators[version]
		if !ok {
			return nil, loom.NewError(loom.KindUnsupportedVersion, version, fmt.Errorf("no migrator registered for version %q", version))
		}
		migrated, err := migrator.Migrate(doc)
		if err != nil {
			return nil, loom.NewError(loom.KindUnsupportedVersion, version, err)
		}
		doc = migrated
		doc["version"] = f.targetVersion
	}

	migratedRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, loom.NewError(loom.KindUnsupportedVersion, "", err)
	}

	var spec Spec
	if err := json.Unmarshal(migratedRaw, &spec); err != nil {
		return nil, loom.NewError(loom.KindUnsupportedVersion, "", err)
	}

	if len(spec.Nodes) == 0 {
		return nil, loom.NewError(loom.KindEmptyWorkflow, "", fmt.Errorf("spec declares no nodes"))
	}

	nodes := make([]*nodecfg.Node, 0, len(spec.Nodes))
	for _, raw := range spec.Nodes {
		n, err := nodecfg.ParseNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	seen := make(map[loom.NodeID]bool, len(nodes))
	for _, n := range nodes {
		if seen[n.ID] {
			return nil, loom.NewError(loom.KindDuplicateNodeID, string(n.ID), fmt.Errorf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	adjacency, edgeCount := sortedAdjacency(nodes)
	topoHash, err := store.HashContent(adjacency)
	if err != nil {
		return nil, loom.NewError(loom.KindUnsupportedVersion, "", err)
	}

	chainID := spec.ChainID
	if chainID == "" {
		chainID = "chain_" + topoHash[:8]
	}

	f.logger.Debug("chain built", "chain_id", chainID, "nodes", len(nodes), "edges", edgeCount)

	return &Chain{
		Nodes: nodes,
		Metadata: Metadata{
			ChainID:      chainID,
			Name:         spec.Name,
			Version:      f.targetVersion,
			NodeCount:    len(nodes),
			EdgeCount:    edgeCount,
			TopologyHash: topoHash,
			Tags:         spec.Tags,
		},
	}, nil
}

// sortedAdjacency returns the sorted-key, sorted-dependency-list
// adjacency map used as the topology hash's canonical input, per
// spec.md §3/§8 invariant 1: two specs differing only in node
// declaration order must hash identically.
func sortedAdjacency(nodes []*nodecfg.Node) (map[string][]string, int) {
	adjacency := make(map[string][]string, len(nodes))
	edgeCount := 0
	for _, n := range nodes {
		deps := make([]string, len(n.Dependencies))
		for i, d := range n.Dependencies {
			deps[i] = string(d)
		}
		sort.Strings(deps)
		adjacency[string(n.ID)] = deps
		edgeCount += len(deps)
	}
	return adjacency, edgeCount
}
