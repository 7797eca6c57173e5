package agent

import (
	"context"
	"fmt"
	"strings"

	"loom/llm"
	"loom/store"
)

// MemoryAdapter is the capability the agent loop's memory feature (spec.md
// §4.9's "Memory" paragraph) is built behind: store/load conversation
// windows and summarise an overflow prefix. The default is an in-memory
// map (store.NewMemoryStore); Redis-backed or other durable alternatives
// are external, per spec.md §9.
type MemoryAdapter interface {
	Store(ctx context.Context, key string, val any) error
	Load(ctx context.Context, key string) (any, bool, error)
	Summarise(ctx context.Context, messages []llm.Message, maxTokens int) (string, error)
}

// DefaultMemory backs Store/Load with a store.Store namespace and
// Summarise with a plain LLM call to a cheap summarisation prompt.
type DefaultMemory struct {
	backing   store.Store
	namespace string
	summarSvc llm.Service
	model     string
}

// NewDefaultMemory builds a DefaultMemory. summariser may be nil; a nil
// summariser degrades Summarise to a naive concatenation-and-truncate,
// which is enough for the "summarize" strategy's contract without ever
// failing the caller.
func NewDefaultMemory(backing store.Store, namespace string, summariser llm.Service, model string) *DefaultMemory {
	return &DefaultMemory{backing: backing, namespace: namespace, summarSvc: summariser, model: model}
}

func (m *DefaultMemory) Store(ctx context.Context, key string, val any) error {
	return m.backing.Put(ctx, m.namespace, key, val)
}

func (m *DefaultMemory) Load(ctx context.Context, key string) (any, bool, error) {
	v, err := m.backing.Get(ctx, m.namespace, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (m *DefaultMemory) Summarise(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	if m.summarSvc == nil {
		return naiveSummary(messages), nil
	}
	transcript := append([]llm.Message{
		{Role: "system", Content: "Summarise the following conversation concisely, preserving any facts a future turn will need."},
	}, messages...)
	text, _, err := m.summarSvc.Generate(ctx, llm.GenerateConfig{Model: m.model, MaxTokens: maxTokens}, transcript, nil)
	if err != nil {
		return naiveSummary(messages), nil
	}
	return text, nil
}

func naiveSummary(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	s := b.String()
	const cap = 500
	if len(s) > cap {
		s = s[:cap]
	}
	return s
}
