// Package agent implements the Agent Loop (spec.md §4.9): the
// Prepare→Generate→Parse→(Tool|Final)→Generate|Done state machine that
// backs every ai/llm node, including tool whitelisting, the tool-call
// result cache that breaks infinite loops, cross-agent cycle detection,
// and best-effort memory/summarisation.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"loom"
	"loom/ctxmgr"
	"loom/llm"
	"loom/store"
	"loom/tool"
)

// Config is the resolved, per-node configuration an Agent runs with —
// already precedence-merged (global < chain < node) by the time the
// ai/llm executor builds it, per spec.md §4.8 step 3.
type Config struct {
	Name          string
	Model         string
	Provider      string
	Temperature   float64
	MaxTokens     int
	MaxRounds     int
	AllowedTools  []string // empty means "no whitelist restriction"
	MemoryEnabled bool
	MemoryWindow  int
	Tools         map[string]tool.Tool // precedence-merged, already filtered to AllowedTools when set
}

// Agent runs one Config's reasoning loop against a Service and a
// Context Manager.
type Agent struct {
	cfg    Config
	llmSvc llm.Service
	ctxMgr *ctxmgr.Manager
	memory MemoryAdapter
	logger store.Logger
}

// Name implements ctxmgr.Agent so Agents can be registered by name.
func (a *Agent) Name() string { return a.cfg.Name }

// New builds an Agent. memory may be nil if cfg.MemoryEnabled is false.
func New(cfg Config, llmSvc llm.Service, ctxMgr *ctxmgr.Manager, memory MemoryAdapter, logger store.Logger) *Agent {
	if logger == nil {
		logger = store.NopLogger{}
	}
	return &Agent{cfg: cfg, llmSvc: llmSvc, ctxMgr: ctxMgr, memory: memory, logger: logger}
}

// Result is what Run returns: the final answer, aggregated usage, and
// whether max_rounds was reached without an explicit termination.
type Result struct {
	Answer          any
	Usage           loom.Usage
	RoundsExhausted bool
}

// Run executes the agent loop against input, per spec.md §4.9's
// per-round contract.
func (a *Agent) Run(ctx context.Context, input string) (Result, error) {
	pop, err := PushAgent(ctx, a.cfg.Name)
	if err != nil {
		return Result{}, err
	}
	defer pop()

	transcript := a.prepare(ctx, input)
	toolCache := make(map[string]any)

	maxRounds := a.cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	var aggUsage loom.Usage
	var lastText string

	for round := 0; round < maxRounds; round++ {
		select {
		case <-ctx.Done():
			return Result{Usage: aggUsage}, loom.NewError(loom.KindCancelled, a.cfg.Name, ctx.Err())
		default:
		}

		text, usage, err := a.llmSvc.Generate(ctx, llm.GenerateConfig{
			Model:       a.cfg.Model,
			Provider:    a.cfg.Provider,
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
		}, transcript, a.toolSpecs())
		aggUsage.Add(usage)
		if err != nil {
			return Result{Usage: aggUsage}, loom.NewError(loom.KindServiceUnavailable, a.cfg.Name, err)
		}
		lastText = text

		call, final, isToolCall := parseResponse(text)
		if !isToolCall {
			a.persistMemory(ctx, transcript, input, final)
			return Result{Answer: final, Usage: aggUsage}, nil
		}

		if !a.toolAllowed(call.ToolName) {
			return Result{Usage: aggUsage}, loom.NewError(loom.KindToolNotAllowed, call.ToolName,
				fmt.Errorf("agent %q is not permitted to call tool %q", a.cfg.Name, call.ToolName))
		}

		cacheKey, err := toolCacheKey(call.ToolName, call.Arguments)
		if err != nil {
			return Result{Usage: aggUsage}, loom.NewError(loom.KindToolInvocationFailed, call.ToolName, err)
		}
		if cached, ok := toolCache[cacheKey]; ok {
			a.persistMemory(ctx, transcript, input, cached)
			return Result{Answer: cached, Usage: aggUsage}, nil
		}

		out, err := a.ctxMgr.ExecuteTool(ctx, call.ToolName, call.Arguments)
		if err != nil {
			return Result{Usage: aggUsage}, err
		}
		toolCache[cacheKey] = out

		transcript = append(transcript,
			llm.Message{Role: "assistant", Content: text},
			llm.Message{Role: "tool", ToolName: call.ToolName, Content: marshalOrString(out)},
		)
	}

	a.persistMemory(ctx, transcript, input, lastText)
	return Result{Answer: lastText, Usage: aggUsage, RoundsExhausted: true}, nil
}

// prepare builds the initial transcript: system instructions, an
// optional loaded summary block, trimmed history, then the user input —
// spec.md §4.9 step 1.
func (a *Agent) prepare(ctx context.Context, input string) []llm.Message {
	transcript := []llm.Message{{Role: "system", Content: fmt.Sprintf("You are agent %q.", a.cfg.Name)}}

	if a.cfg.MemoryEnabled && a.memory != nil {
		if summary, ok, err := a.memory.Load(ctx, a.cfg.Name+"__summary"); err == nil && ok {
			if s, ok := summary.(string); ok && s != "" {
				transcript = append(transcript, llm.Message{Role: "system", Content: "Earlier context: " + s})
			}
		}
		if history, ok, err := a.memory.Load(ctx, a.cfg.Name); err == nil && ok {
			if msgs, ok := history.([]llm.Message); ok {
				window := a.cfg.MemoryWindow * 2
				if window > 0 && len(msgs) > window {
					msgs = msgs[len(msgs)-window:]
				}
				transcript = append(transcript, msgs...)
			}
		}
	}

	return append(transcript, llm.Message{Role: "user", Content: input})
}

// persistMemory runs spec.md §4.9's memory rules best-effort: failures
// are logged and swallowed, never surfaced to the run.
func (a *Agent) persistMemory(ctx context.Context, transcript []llm.Message, input string, answer any) {
	if !a.cfg.MemoryEnabled || a.memory == nil {
		return
	}
	full := append(append([]llm.Message{}, transcript...), llm.Message{Role: "user", Content: input}, llm.Message{Role: "assistant", Content: marshalOrString(answer)})

	window := a.cfg.MemoryWindow * 2
	overflowThreshold := a.cfg.MemoryWindow * 4
	if overflowThreshold > 0 && len(full) > overflowThreshold {
		overflow := full[:len(full)-window]
		summary, err := a.memory.Summarise(ctx, overflow, 512)
		if err != nil {
			a.logger.Warn("agent memory summarisation failed", "agent", a.cfg.Name, "err", err)
		} else if err := a.memory.Store(ctx, a.cfg.Name+"__summary", summary); err != nil {
			a.logger.Warn("agent memory summary store failed", "agent", a.cfg.Name, "err", err)
		}
	}

	trailing := full
	if window > 0 && len(full) > window {
		trailing = full[len(full)-window:]
	}
	if err := a.memory.Store(ctx, a.cfg.Name, trailing); err != nil {
		a.logger.Warn("agent memory store failed", "agent", a.cfg.Name, "err", err)
	}
}

func (a *Agent) toolAllowed(name string) bool {
	if len(a.cfg.AllowedTools) == 0 {
		_, ok := a.cfg.Tools[name]
		return ok
	}
	for _, allowed := range a.cfg.AllowedTools {
		if allowed == name {
			return true
		}
	}
	return false
}

func (a *Agent) toolSpecs() []llm.ToolSpec {
	names := make([]string, 0, len(a.cfg.Tools))
	for n := range a.cfg.Tools {
		names = append(names, n)
	}
	sort.Strings(names)

	specs := make([]llm.ToolSpec, 0, len(names))
	for _, n := range names {
		t := a.cfg.Tools[n]
		var params map[string]any
		if schema := t.ParametersSchema(); schema != nil {
			b, _ := json.Marshal(schema)
			_ = json.Unmarshal(b, &params)
		}
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: params})
	}
	return specs
}

// toolCall is the shape a model's tool-invocation JSON response takes,
// per spec.md §4.9 step 6.
type toolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// parseResponse implements spec.md §4.9 steps 5-7: best-effort JSON
// parse; a tool_name object is a tool call, any other JSON value (or a
// parse failure) is a final answer.
func parseResponse(text string) (call toolCall, final any, isToolCall bool) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return toolCall{}, text, false
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return toolCall{}, raw, false
	}
	name, ok := obj["tool_name"].(string)
	if !ok || name == "" {
		return toolCall{}, raw, false
	}
	args, _ := obj["arguments"].(map[string]any)
	return toolCall{ToolName: name, Arguments: args}, nil, true
}

func toolCacheKey(name string, args map[string]any) (string, error) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sorted := make(map[string]any, len(args))
	for _, k := range keys {
		sorted[k] = args[k]
	}
	return store.HashContent(map[string]any{"tool": name, "args": sorted})
}

func marshalOrString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
