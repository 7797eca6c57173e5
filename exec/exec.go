// Package exec implements Executor Dispatch (spec.md §4.8): the five
// per-type executors — tool/skill, ai/llm (delegating into loom/agent),
// condition, nested_chain, and loop — registered into a loom/registry.Registry.
package exec

import (
	"context"
	"encoding/json"
	"fmt"

	"loom"
	"loom/agent"
	"loom/chain"
	"loom/condeval"
	"loom/ctxmgr"
	"loom/graph"
	"loom/llm"
	"loom/nodecfg"
	"loom/registry"
	"loom/schedule"
	"loom/store"
	"loom/tool"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Deps bundles every collaborator the five executors need. A single
// Deps is shared across every node in a run; loom/schedule.Scheduler and
// this package's registered executors both close over the same
// ctxmgr.Manager, matching spec.md §4.3's "shared read-mostly" contract.
type Deps struct {
	CtxMgr      *ctxmgr.Manager
	LLMSvc      llm.Service
	Memory      agent.MemoryAdapter
	Logger      store.Logger
	ChainTools       []string // chain-level tool visibility, spec.md §3
	Factory          *chain.Factory // for nested_chain/loop body resolution
	Registry         *registry.Registry
	SchedulerOptions schedule.Options
}

// RegisterAll wires every executor into reg.
func RegisterAll(reg *registry.Registry, deps *Deps) {
	reg.Register(nodecfg.KindTool, toolExecutor(deps))
	reg.Register(nodecfg.KindLLM, llmExecutor(deps))
	reg.Register(nodecfg.KindCondition, conditionExecutor(deps))
	reg.Register(nodecfg.KindNestedChain, nestedChainExecutor(deps))
	reg.Register(nodecfg.KindLoop, loopExecutor(deps))
}

// toolExecutor implements spec.md §4.8's tool/skill dispatch.
func toolExecutor(deps *Deps) registry.Executor {
	return func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg, ok := n.Config.(*nodecfg.ToolConfig)
		if !ok {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(n.ID), fmt.Errorf("tool node %q has no ToolConfig", n.ID))
		}

		renderedArgs, err := schedule.RenderToolArgs(cfg.ToolArgs, toNodeIDMap(inputs))
		if err != nil {
			return nil, loom.NewError(loom.KindToolInvocationFailed, cfg.ToolName, err)
		}

		out, err := deps.CtxMgr.ExecuteTool(ctx, cfg.ToolName, renderedArgs)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// llmExecutor implements spec.md §4.8's ai/llm dispatch, delegating the
// actual reasoning loop to loom/agent.
func llmExecutor(deps *Deps) registry.Executor {
	return func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg, ok := n.Config.(*nodecfg.LLMConfig)
		if !ok {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(n.ID), fmt.Errorf("llm node %q has no LLMConfig", n.ID))
		}

		prompt, renderErr := schedule.RenderString(cfg.Prompt, toNodeIDMap(inputs))
		if renderErr != nil {
			prompt = cfg.Prompt // keep raw prompt, per spec.md §4.8 step 1, still run leftover check below
		}
		if schedule.HasUnresolvedPlaceholder(prompt) {
			return nil, loom.NewError(loom.KindUnresolvedPlaceholder, string(n.ID),
				fmt.Errorf("prompt for node %q has unresolved placeholders after rendering", n.ID))
		}

		ctx = agent.EnsureCallStack(ctx)
		mergedTools := mergeTools(deps, cfg)

		a := agent.New(agent.Config{
			Name:          string(n.ID),
			Model:         cfg.Model,
			Provider:      cfg.Provider,
			Temperature:   cfg.Temperature,
			MaxTokens:     cfg.MaxTokens,
			MaxRounds:     cfg.MaxRounds,
			AllowedTools:  cfg.AllowedTools,
			MemoryEnabled: cfg.MemoryEnabled,
			MemoryWindow:  cfg.MemoryWindow,
			Tools:         mergedTools,
		}, deps.LLMSvc, deps.CtxMgr, deps.Memory, deps.Logger)

		if err := deps.CtxMgr.RegisterAgent(a); err != nil {
			return nil, err
		}
		// Every ai/llm node is itself invocable as a tool under its own
		// node ID, the as_tool adapter spec.md §8 invariant 6 exercises
		// for cross-agent (and self) cycle detection.
		deps.CtxMgr.RegisterTool(agent.AsTool{Agent: a})

		result, err := a.Run(ctx, prompt)
		if err != nil {
			return nil, err
		}

		return &loom.ExecutorOutput{Value: result.Answer, Usage: &result.Usage, RoundsExhausted: result.RoundsExhausted}, nil
	}
}

// mergeTools implements spec.md §4.8 step 3's precedence chain: global <
// chain-level < node `tools`, then filtered by `allowed_tools` if set.
func mergeTools(deps *Deps, cfg *nodecfg.LLMConfig) map[string]tool.Tool {
	merged := make(map[string]tool.Tool)
	for _, t := range deps.CtxMgr.GetAllTools() {
		merged[t.Name()] = t
	}
	for _, name := range deps.ChainTools {
		if t, ok := deps.CtxMgr.GetTool(name); ok {
			merged[name] = t
		}
	}
	for _, name := range cfg.Tools {
		if t, ok := deps.CtxMgr.GetTool(name); ok {
			merged[name] = t
		}
	}
	if len(cfg.AllowedTools) == 0 {
		return merged
	}
	filtered := make(map[string]tool.Tool, len(cfg.AllowedTools))
	for _, name := range cfg.AllowedTools {
		if t, ok := merged[name]; ok {
			filtered[name] = t
		}
	}
	return filtered
}

// conditionExecutor implements spec.md §4.8's condition dispatch.
func conditionExecutor(deps *Deps) registry.Executor {
	return func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg, ok := n.Config.(*nodecfg.ConditionConfig)
		if !ok {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(n.ID), fmt.Errorf("condition node %q has no ConditionConfig", n.ID))
		}
		result, err := condeval.Evaluate(cfg.Expression, toNodeIDMap(inputs))
		if err != nil {
			return nil, err
		}
		branch := "false"
		next := cfg.FalseBranch
		if result {
			branch = "true"
			next = cfg.TrueBranch
		}
		return &loom.ExecutorOutput{
			Value:  map[string]any{"result": result, "branch": string(next)},
			Branch: branch,
		}, nil
	}
}

// nestedChainExecutor implements spec.md §4.8's nested_chain dispatch.
func nestedChainExecutor(deps *Deps) registry.Executor {
	return func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg, ok := n.Config.(*nodecfg.NestedChainConfig)
		if !ok {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(n.ID), fmt.Errorf("nested_chain node %q has no NestedChainConfig", n.ID))
		}

		childChain, err := deps.Factory.Build(cfg.Chain)
		if err != nil {
			return nil, err
		}
		validated, err := graph.Validate(childChain)
		if err != nil {
			return nil, err
		}

		sched := schedule.New(deps.Registry, deps.CtxMgr, deps.Logger)
		childResult := sched.RunWithOptions(ctx, validated, deps.SchedulerOptions)

		mapped := applyExposedOutputs(cfg.ExposedOutputs, childResult, deps.Logger)

		if !childResult.Success {
			return &loom.ExecutorOutput{Value: mapped}, loom.NewError(childResult.ErrorKind, string(n.ID), fmt.Errorf("%s", childResult.Error))
		}
		return &loom.ExecutorOutput{Value: mapped}, nil
	}
}

// applyExposedOutputs maps public_key -> path-expression over the
// child's output map, reading each path with gjson and writing the
// mapped result into a fresh JSON document with sjson; on any mapping
// failure it swallows the error and falls back to the raw child
// output, per spec.md §4.8's "on mapping failure the raw child output
// is propagated" rule and §9's best-effort-swallow design note.
func applyExposedOutputs(exposed map[string]string, childResult loom.RunResult, logger store.Logger) any {
	if len(exposed) == 0 {
		return childResult.Output
	}
	raw := make(map[loom.NodeID]any, len(childResult.Output))
	for id, r := range childResult.Output {
		raw[id] = r.Output
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		logger.Warn("exposed_outputs mapping failed, propagating raw child output")
		return childResult.Output
	}

	doc := []byte("{}")
	for public, path := range exposed {
		result := gjson.GetBytes(rawJSON, path)
		if !result.Exists() {
			logger.Warn("exposed_outputs mapping failed, propagating raw child output")
			return childResult.Output
		}
		doc, err = sjson.SetBytes(doc, public, result.Value())
		if err != nil {
			logger.Warn("exposed_outputs mapping failed, propagating raw child output")
			return childResult.Output
		}
	}

	var out map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		logger.Warn("exposed_outputs mapping failed, propagating raw child output")
		return childResult.Output
	}
	return out
}

// resolvePath reads a dotted path-expression out of a node-ID-keyed
// context map via gjson, the same substitution grammar loom/schedule
// uses for `{id.field.sub}` placeholders.
func resolvePath(path string, raw map[loom.NodeID]any) (any, bool) {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	result := gjson.GetBytes(rawJSON, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// loopExecutor implements spec.md §4.8's loop dispatch.
func loopExecutor(deps *Deps) registry.Executor {
	return func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error) {
		cfg, ok := n.Config.(*nodecfg.LoopConfig)
		if !ok {
			return nil, loom.NewError(loom.KindUnknownNodeType, string(n.ID), fmt.Errorf("loop node %q has no LoopConfig", n.ID))
		}

		iterSrc, found := resolvePath(cfg.IteratorSource, toNodeIDMap(inputs))
		if !found {
			return nil, loom.NewError(loom.KindUnresolvedPlaceholder, cfg.IteratorSource,
				fmt.Errorf("loop node %q: iterator_source %q not found in context", n.ID, cfg.IteratorSource))
		}
		items, ok := iterSrc.([]any)
		if !ok {
			return nil, loom.NewError(loom.KindInvalidParams, cfg.IteratorSource,
				fmt.Errorf("loop node %q: iterator_source did not resolve to a list", n.ID))
		}

		max := cfg.MaxIterations
		if max <= 0 || max > len(items) {
			max = len(items)
		}

		results := make([]any, 0, max)
		for i := 0; i < max; i++ {
			childChain, err := deps.Factory.Build(cfg.BodyChain)
			if err != nil {
				return nil, err
			}
			validated, err := graph.Validate(childChain)
			if err != nil {
				return nil, err
			}

			deps.CtxMgr.UpdateNodeContext("loop_item", items[i])
			sched := schedule.New(deps.Registry, deps.CtxMgr, deps.Logger)
			iterResult := sched.RunWithOptions(ctx, validated, deps.SchedulerOptions)
			results = append(results, iterResult)

			if !iterResult.Success && deps.SchedulerOptions.Strict {
				return &loom.ExecutorOutput{Value: results}, loom.NewError(loom.KindUpstreamFailed, string(n.ID),
					fmt.Errorf("loop iteration %d failed", i))
			}
		}

		return &loom.ExecutorOutput{Value: results}, nil
	}
}

func toNodeIDMap(inputs map[string]any) map[loom.NodeID]any {
	out := make(map[loom.NodeID]any, len(inputs))
	for k, v := range inputs {
		out[loom.NodeID(k)] = v
	}
	return out
}
