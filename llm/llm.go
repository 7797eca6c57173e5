// Package llm defines the LLM service contract (spec.md §6:
// `generate(llm_config, prompt, context, tools?) → (text, usage, error)`)
// and ships two concrete providers plus a router that dispatches by the
// node's declared `provider` field. Grounded on the teacher's
// nodes/openai/createchatcompletion.go (sashabaranov/go-openai client
// wrapping) and streamnode/streamnode.go (github.com/openai/openai-go
// client wrapping) — both teacher dependencies get a real call site here
// instead of being dropped.
package llm

import (
	"context"
	"fmt"

	"loom"
)

// Message is one chat-transcript entry, per spec.md §4.9 step 1.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolName   string // set on tool-result messages
	ToolCallID string
}

// ToolSpec is the provider-agnostic shape the agent loop hands to a
// Service — enough to build either provider's function-calling
// definitions without loom/llm depending on loom/tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema object
}

// GenerateConfig carries the per-call knobs a node declares, per
// spec.md §4.9 step 2.
type GenerateConfig struct {
	Model       string
	Provider    string
	Temperature float64
	MaxTokens   int
}

// Service is the LLM service contract every provider implements.
type Service interface {
	Generate(ctx context.Context, cfg GenerateConfig, transcript []Message, tools []ToolSpec) (text string, usage loom.Usage, err error)
}

// Router dispatches Generate to the Service registered under
// cfg.Provider, mirroring the Service Locator's string-keyed lookup but
// scoped to LLM providers specifically.
type Router struct {
	providers map[string]Service
	fallback  string
}

// NewRouter builds a Router with an optional default provider name used
// when a node's Provider field is empty.
func NewRouter(fallback string) *Router {
	return &Router{providers: make(map[string]Service), fallback: fallback}
}

// Register binds name to svc.
func (r *Router) Register(name string, svc Service) { r.providers[name] = svc }

// Generate resolves cfg.Provider (or the router's fallback) and delegates.
func (r *Router) Generate(ctx context.Context, cfg GenerateConfig, transcript []Message, tools []ToolSpec) (string, loom.Usage, error) {
	name := cfg.Provider
	if name == "" {
		name = r.fallback
	}
	svc, ok := r.providers[name]
	if !ok {
		return "", loom.Usage{}, loom.NewError(loom.KindServiceUnavailable, name,
			fmt.Errorf("no LLM provider registered under %q", name))
	}
	return svc.Generate(ctx, cfg, transcript, tools)
}
