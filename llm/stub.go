package llm

import (
	"context"
	"sync"

	"loom"
)

// StubService is a scripted Service used by this module's own tests
// (spec.md §8 scenarios S4-S6 describe exactly this: "LLM stub
// returning text ..."), grounded on the teacher's clientiface.go
// pattern of substituting a narrow interface for *openai.Client in
// tests.
type StubService struct {
	// Responses is consumed one per Generate call, in order; the last
	// entry repeats once exhausted.
	Responses []string
	Usage     loom.Usage

	mu    sync.Mutex
	calls int
}

func (s *StubService) Generate(_ context.Context, _ GenerateConfig, _ []Message, _ []ToolSpec) (string, loom.Usage, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	if idx < 0 {
		return "", s.Usage, nil
	}
	return s.Responses[idx], s.Usage, nil
}
