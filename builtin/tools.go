// Package builtin provides the handful of deterministic tools used by
// this module's own end-to-end tests (spec.md §8 scenarios S1-S3) and by
// cmd/loomd's example wiring. It is not a production tool library —
// spec.md §1 explicitly scopes concrete tool implementations out of the
// core, the way CSV readers and summarisers are external collaborators
// in the source system this was distilled from (see
// tests/nodes/test_tool_node_sum.py and tests/chain/test_script_chain_limits.py
// in original_source/, which exercise the same "sum" tool this package
// carries forward).
package builtin

import (
	"context"
	"fmt"

	"loom/tool"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// SumTool adds a list of numbers, mirroring original_source/'s SumTool
// exactly (same name, same {"sum": total} output shape) so the ported
// end-to-end scenarios assert on identical values.
type SumTool struct{}

func (SumTool) Name() string        { return "sum" }
func (SumTool) Description() string { return "Adds a list of numbers together." }

func (SumTool) ParametersSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"numbers": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.Number},
			},
		},
		Required: []string{"numbers"},
	}
}

func (SumTool) OutputSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"sum": {Type: jsonschema.Number},
		},
	}
}

func (SumTool) Run(_ context.Context, args map[string]any) (any, error) {
	raw, ok := args["numbers"]
	if !ok {
		return nil, fmt.Errorf("sum: missing %q argument", "numbers")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("sum: %q must be an array, got %T", "numbers", raw)
	}
	total := 0.0
	for _, item := range items {
		n, err := toFloat(item)
		if err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
		total += n
	}
	return map[string]any{"sum": total}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

// EchoTool returns its single "value" argument unchanged; used in
// placeholder-substitution tests (spec.md S3).
type EchoTool struct{}

func (EchoTool) Name() string        { return "echo" }
func (EchoTool) Description() string { return "Returns its input value unchanged." }
func (EchoTool) ParametersSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type:     jsonschema.Object,
		Required: []string{"value"},
	}
}
func (EchoTool) OutputSchema() *jsonschema.Definition { return nil }
func (EchoTool) Run(_ context.Context, args map[string]any) (any, error) {
	return map[string]any{"value": args["value"]}, nil
}

// ConcatTool joins a list of strings with a separator.
type ConcatTool struct{}

func (ConcatTool) Name() string        { return "concat" }
func (ConcatTool) Description() string { return "Joins strings with a separator." }
func (ConcatTool) ParametersSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type:     jsonschema.Object,
		Required: []string{"parts"},
	}
}
func (ConcatTool) OutputSchema() *jsonschema.Definition { return nil }
func (ConcatTool) Run(_ context.Context, args map[string]any) (any, error) {
	rawParts, _ := args["parts"].([]any)
	sep, _ := args["separator"].(string)
	out := ""
	for i, p := range rawParts {
		if i > 0 {
			out += sep
		}
		out += fmt.Sprintf("%v", p)
	}
	return map[string]any{"result": out}, nil
}

// RegisterAll registers every builtin tool into r.
func RegisterAll(r *tool.Registry) {
	r.Register(SumTool{})
	r.Register(EchoTool{})
	r.Register(ConcatTool{})
}
