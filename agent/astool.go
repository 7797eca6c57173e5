package agent

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// AsTool exposes an Agent as an invocable tool.Tool, the adapter spec.md
// §8 invariant 6 exercises: an agent that (transitively) calls itself
// through this adapter must fail with AgentCycle rather than recurse
// forever. Because Run below calls a.Run with the *same* ctx it
// received, the ctx's call stack (see callstack.go) carries across the
// nested invocation and catches the re-entry.
type AsTool struct {
	Agent      *Agent
	InputField string // which argument key carries the agent's input text; defaults to "input"
}

func (t AsTool) Name() string { return t.Agent.cfg.Name }

func (t AsTool) Description() string {
	return "Invokes agent " + t.Agent.cfg.Name + " as a tool."
}

func (t AsTool) ParametersSchema() *jsonschema.Definition {
	field := t.field()
	return &jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{field: {Type: jsonschema.String}},
		Required:   []string{field},
	}
}

func (t AsTool) OutputSchema() *jsonschema.Definition { return nil }

func (t AsTool) Run(ctx context.Context, args map[string]any) (any, error) {
	input, _ := args[t.field()].(string)
	result, err := t.Agent.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	return result.Answer, nil
}

func (t AsTool) field() string {
	if t.InputField != "" {
		return t.InputField
	}
	return "input"
}
