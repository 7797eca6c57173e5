// Package tool implements the pluggable Tool/Skill Registry (spec.md
// §4.4): a Tool is a named, schema-validated, invocable unit; the
// Registry is a name-keyed lookup used by both direct executor dispatch
// (loom/exec) and the agent loop (loom/agent).
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"loom"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool is the contract every invocable unit implements, per spec.md §6.
type Tool interface {
	Name() string
	Description() string
	// ParametersSchema is optional; nil means no validation is performed
	// beyond the tool's own Run logic.
	ParametersSchema() *jsonschema.Definition
	// OutputSchema is optional and purely descriptive; loom never
	// validates it, matching spec.md's "best-effort" schema fit
	// language for producer/consumer checks (loom/graph does that for
	// node-to-node schemas, not for tool outputs).
	OutputSchema() *jsonschema.Definition
	Run(ctx context.Context, args map[string]any) (any, error)
}

// ValidatingTool is implemented by tools that want to run their own
// parameter validation ahead of Run, per spec.md §4.4's "validate_params
// must run before run" requirement. Tools that don't implement it are
// validated structurally against ParametersSchema when one is declared.
type ValidatingTool interface {
	Tool
	ValidateParams(args map[string]any) error
}

// stats tracks the supplemented per-tool invocation metrics described in
// SPEC_FULL.md §6 (restored from original_source/'s tool dispatcher).
type stats struct {
	calls    int64
	duration time.Duration
}

// Registry is a name-keyed Tool lookup. Registration is expected to
// happen before any run starts, per spec.md §5's "runtime registration
// during a run is undefined behaviour".
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	stats map[string]*stats
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), stats: make(map[string]*stats)}
}

// Register adds t, replacing any prior tool under the same name —
// last-writer-wins, matching the node registry's documented semantics.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	if _, ok := r.stats[t.Name()]; !ok {
		r.stats[t.Name()] = &stats{}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, sorted by name for deterministic
// iteration (needed so allowed_tools whitelist checks and precedence
// merges behave identically regardless of registration order).
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		out = append(out, r.tools[n])
	}
	return out
}

// ValidateParams runs a tool's own ValidateParams if implemented,
// otherwise performs a minimal structural check against
// ParametersSchema's required-field list. It is safe to call repeatedly,
// per spec.md §8 invariant 4.
func ValidateParams(t Tool, args map[string]any) error {
	if vt, ok := t.(ValidatingTool); ok {
		if err := vt.ValidateParams(args); err != nil {
			return loom.NewError(loom.KindInvalidParams, t.Name(), err)
		}
		return nil
	}
	schema := t.ParametersSchema()
	if schema == nil {
		return nil
	}
	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return loom.NewError(loom.KindInvalidParams, t.Name(),
				fmt.Errorf("missing required argument %q", required))
		}
	}
	return nil
}

// Execute validates then runs t, recording the supplemented per-tool
// call-count/latency metrics described in SPEC_FULL.md §6.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, loom.NewError(loom.KindToolInvocationFailed, name, fmt.Errorf("tool %q not registered", name))
	}
	if err := ValidateParams(t, args); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := t.Run(ctx, args)
	elapsed := time.Since(start)

	r.mu.Lock()
	if s, ok := r.stats[name]; ok {
		s.calls++
		s.duration += elapsed
	}
	r.mu.Unlock()

	if err != nil {
		if loom.Classify(err) != loom.KindNone {
			// t.Run already returned a classified error (e.g. an agent
			// tool surfacing AgentCycle) — preserve its kind instead of
			// masking it behind a generic ToolInvocationFailed.
			return nil, err
		}
		return nil, loom.NewError(loom.KindToolInvocationFailed, name, err)
	}
	return out, nil
}

// Stats returns the cumulative call count and duration recorded for
// name, per SPEC_FULL.md §6's supplemented per-tool metrics.
func (r *Registry) Stats(name string) (calls int64, total time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[name]
	if !ok {
		return 0, 0
	}
	return s.calls, s.duration
}
