// Package nodecfg defines the tagged-variant NodeConfig data model from
// spec.md §3: a sealed set of node kinds (tool, ai/llm, condition,
// nested_chain, loop), each parsed from its own JSON shape. Unknown
// "type" tags fail at parse time rather than falling back to a generic
// struct, per spec.md §9's "tagged-variant node configs replace runtime
// type sniffing" design note.
package nodecfg

import (
	"encoding/json"
	"fmt"
	"sort"

	"loom"
)

// Kind is the sealed set of node types.
type Kind string

const (
	KindTool        Kind = "tool"
	KindSkill       Kind = "skill" // alias of tool, per spec.md §4.1
	KindLLM         Kind = "llm"
	KindAI          Kind = "ai" // alias of llm
	KindCondition   Kind = "condition"
	KindNestedChain Kind = "nested_chain"
	KindLoop        Kind = "loop"
)

// Canonical maps an alias to its canonical kind ("skill"->"tool",
// "ai"->"llm"), matching spec.md §4.1's documented aliasing.
func Canonical(k Kind) Kind {
	switch k {
	case KindSkill:
		return KindTool
	case KindAI:
		return KindLLM
	default:
		return k
	}
}

// Node is the common envelope every node variant embeds: identity,
// declared dependencies, and its computed topological Level (filled in
// by loom/graph, zero until then).
type Node struct {
	ID           loom.NodeID `json:"id"`
	Type         Kind        `json:"type"`
	Name         string      `json:"name,omitempty"`
	Dependencies []loom.NodeID `json:"dependencies,omitempty"`
	Level        loom.Level  `json:"-"`

	// Config holds the type-specific parsed payload: *ToolConfig,
	// *LLMConfig, *ConditionConfig, *NestedChainConfig, or *LoopConfig.
	Config any `json:"-"`
}

// ToolConfig is the tool/skill node payload, per spec.md §3.
type ToolConfig struct {
	ToolName     string         `json:"tool_name"`
	ToolArgs     map[string]any `json:"tool_args,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// LLMConfig is the ai/llm node payload, per spec.md §3.
type LLMConfig struct {
	Model         string        `json:"model,omitempty"`
	Provider      string        `json:"provider,omitempty"`
	Prompt        string        `json:"prompt"`
	Temperature   float64       `json:"temperature,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Tools         []string      `json:"tools,omitempty"`
	AllowedTools  []string      `json:"allowed_tools,omitempty"`
	MemoryEnabled bool          `json:"memory_enabled,omitempty"`
	MemoryWindow  int           `json:"memory_window,omitempty"`
	MaxRounds     int           `json:"max_rounds,omitempty"`
}

// ConditionConfig is the condition node payload, per spec.md §3.
type ConditionConfig struct {
	Expression  string      `json:"expression"`
	TrueBranch  loom.NodeID `json:"true_branch,omitempty"`
	FalseBranch loom.NodeID `json:"false_branch,omitempty"`
}

// NestedChainConfig is the nested_chain node payload, per spec.md §3.
// Chain holds the embedded raw spec (json.RawMessage) — it is parsed
// lazily by loom/chain when the node executes, since a factory-produced
// chain is a runtime value, not a JSON literal.
type NestedChainConfig struct {
	Chain          json.RawMessage  `json:"chain"`
	ExposedOutputs map[string]string `json:"exposed_outputs,omitempty"`
}

// LoopConfig is the loop node payload, per spec.md §3.
type LoopConfig struct {
	IteratorSource string          `json:"iterator_source"`
	BodyChain      json.RawMessage `json:"body_chain"`
	MaxIterations  int             `json:"max_iterations"`
}

// rawNode is the wire shape used only for the initial type-dispatch pass.
type rawNode struct {
	ID           loom.NodeID   `json:"id"`
	Type         Kind          `json:"type"`
	Name         string        `json:"name,omitempty"`
	Dependencies []loom.NodeID `json:"dependencies,omitempty"`
}

// ParseNode dispatches raw on its "type" tag into a typed Node. Unknown
// types fail with KindUnknownNodeType, per spec.md §4.5 step 3.
func ParseNode(raw json.RawMessage) (*Node, error) {
	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, loom.NewError(loom.KindUnknownNodeType, "", fmt.Errorf("parsing node envelope: %w", err))
	}
	if rn.ID == "" {
		return nil, loom.NewError(loom.KindUnknownNodeType, "", fmt.Errorf("node missing required \"id\" field"))
	}

	n := &Node{ID: rn.ID, Type: rn.Type, Name: rn.Name, Dependencies: rn.Dependencies}

	switch Canonical(rn.Type) {
	case KindTool:
		var cfg ToolConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), err)
		}
		n.Config = &cfg
	case KindLLM:
		var cfg LLMConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), err)
		}
		n.Config = &cfg
	case KindCondition:
		var cfg ConditionConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), err)
		}
		n.Config = &cfg
	case KindNestedChain:
		var cfg NestedChainConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), err)
		}
		n.Config = &cfg
	case KindLoop:
		var cfg LoopConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), err)
		}
		n.Config = &cfg
	default:
		return nil, loom.NewError(loom.KindUnknownNodeType, string(rn.ID), fmt.Errorf("unknown node type %q", rn.Type))
	}

	// dependencies are stored sorted so two specs differing only in
	// declared dependency order produce an identical adjacency list and
	// therefore an identical topology hash — spec.md §8 invariant 1.
	sort.Slice(n.Dependencies, func(i, j int) bool { return n.Dependencies[i] < n.Dependencies[j] })

	return n, nil
}
