// Package ctxmgr implements the Context Manager (spec.md §4.3): the
// per-run namespace holding node outputs, the tool registry, the agent
// registry, and a memory-compression hook. loom/agent does not call that
// hook; it summarises through its own MemoryAdapter.
// Grounded on the teacher's store.go GraphStore (per-graphID namespacing,
// RWMutex-guarded map access) narrowed to the run-scoped surface spec.md
// actually names.
package ctxmgr

import (
	"context"
	"fmt"
	"sync"

	"loom"
	"loom/tool"
)

// Agent is the narrow capability ctxmgr needs from whatever loom/agent
// constructs — just enough to detect re-registration of a
// different-but-same-named agent, per spec.md §4.3's register_agent
// idempotence rule.
type Agent interface {
	Name() string
}

// Summariser performs the "summarize" strategy of smart_context_compression.
// ctxmgr only needs the capability so it can expose the hook spec.md §4.3
// describes; no type in this module implements it (loom/agent's
// DefaultMemory.Summarise takes []llm.Message, not []any).
type Summariser interface {
	Summarise(ctx context.Context, messages []any, maxTokens int) (string, error)
}

// Manager is the per-run Context Manager.
type Manager struct {
	mu     sync.RWMutex
	nodes  map[loom.NodeID]any
	tools  *tool.Registry
	agents map[string]Agent

	summariser Summariser
}

// New builds a Manager backed by tools. summariser may be nil if the
// owning run never uses memory_enabled LLM nodes.
func New(tools *tool.Registry, summariser Summariser) *Manager {
	return &Manager{
		nodes:      make(map[loom.NodeID]any),
		tools:      tools,
		agents:     make(map[string]Agent),
		summariser: summariser,
	}
}

// GetNodeContext returns the stored output for id, or nil if none.
func (m *Manager) GetNodeContext(id loom.NodeID) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[id]
}

// UpdateNodeContext records id's output. Writes are serialised per
// spec.md §5's "mutations must be serialised per key" rule.
func (m *Manager) UpdateNodeContext(id loom.NodeID, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = value
}

// Snapshot returns a shallow copy of every recorded node output, used to
// build the placeholder-substitution context dictionary.
func (m *Manager) Snapshot() map[loom.NodeID]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[loom.NodeID]any, len(m.nodes))
	for k, v := range m.nodes {
		out[k] = v
	}
	return out
}

// RegisterTool registers t for this run's scope.
func (m *Manager) RegisterTool(t tool.Tool) { m.tools.Register(t) }

// GetTool looks up a tool by name.
func (m *Manager) GetTool(name string) (tool.Tool, bool) { return m.tools.Get(name) }

// GetAllTools returns every tool visible to this run.
func (m *Manager) GetAllTools() []tool.Tool { return m.tools.All() }

// ExecuteTool validates args then runs the named tool, per spec.md §4.4.
func (m *Manager) ExecuteTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return m.tools.Execute(ctx, name, args)
}

// RegisterAgent enforces spec.md §4.3's idempotence rule: registering the
// same agent reference under its own name twice is a no-op; registering a
// different agent under a name already in use fails.
func (m *Manager) RegisterAgent(a Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.agents[a.Name()]
	if !ok {
		m.agents[a.Name()] = a
		return nil
	}
	if existing == a {
		return nil
	}
	return loom.NewError(loom.KindInvalidParams, a.Name(),
		fmt.Errorf("an agent named %q is already registered", a.Name()))
}

// GetAgent looks up a previously registered agent by name.
func (m *Manager) GetAgent(name string) (Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

// SmartContextCompression runs the named compression strategy, per
// spec.md §4.3. "summarize" is the only strategy this module ships;
// unknown strategies and a missing summariser are returned as errors,
// not treated as a silent no-op.
func (m *Manager) SmartContextCompression(ctx context.Context, messages []any, strategy string, maxTokens int) (string, error) {
	if strategy != "summarize" {
		return "", fmt.Errorf("ctxmgr: unsupported compression strategy %q", strategy)
	}
	if m.summariser == nil {
		return "", fmt.Errorf("ctxmgr: no summariser configured")
	}
	return m.summariser.Summarise(ctx, messages, maxTokens)
}
