// Package schedule implements the Level Scheduler (spec.md §4.7): level
// barrier execution bounded by a semaphore, depth/token ceilings,
// per-node timeouts, sibling-failure policy, and the {id}/{id.field.sub}
// placeholder substitution grammar shared by tool_args and LLM prompts.
package schedule

import (
	"encoding/json"
	"regexp"

	"loom"

	"github.com/tidwall/gjson"
)

// placeholderPattern matches {id} or {id.field.sub} — a bare identifier
// optionally followed by dotted path segments, per spec.md §4.7/§9's
// "small, explicit grammar" note.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\}`)

// RenderString substitutes every {path} placeholder in s against ctx
// (a node-id-keyed map of outputs), using gjson to walk dotted paths
// into nested JSON-shaped values. Placeholders with no match are left
// unchanged — the caller decides whether that's fatal (LLM prompts) or
// tolerated (tool_args), per spec.md §4.7.
func RenderString(s string, ctx map[loom.NodeID]any) (string, error) {
	doc, err := ctxDocument(ctx)
	if err != nil {
		return s, err
	}
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := match[1 : len(match)-1]
		v := gjson.GetBytes(doc, path)
		if !v.Exists() {
			return match
		}
		return v.String()
	})
	return result, nil
}

// HasUnresolvedPlaceholder reports whether s still contains a {path}
// token after rendering — the hard gate spec.md §4.7 requires for LLM
// prompts.
func HasUnresolvedPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

// RenderToolArgs recursively substitutes placeholders in every string
// leaf of args; non-string values and missing keys pass through
// unchanged, per spec.md §4.8's tool executor step 1.
func RenderToolArgs(args map[string]any, ctx map[loom.NodeID]any) (map[string]any, error) {
	doc, err := ctxDocument(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = renderValue(v, doc)
	}
	return out, nil
}

func renderValue(v any, doc []byte) any {
	switch val := v.(type) {
	case string:
		return placeholderPattern.ReplaceAllStringFunc(val, func(match string) string {
			path := match[1 : len(match)-1]
			res := gjson.GetBytes(doc, path)
			if !res.Exists() {
				return match
			}
			return res.String()
		})
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = renderValue(inner, doc)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = renderValue(inner, doc)
		}
		return out
	default:
		return v
	}
}

// ctxDocument marshals ctx into a JSON document keyed by NodeID, the
// shape gjson paths like "n0.x.y" address directly.
func ctxDocument(ctx map[loom.NodeID]any) ([]byte, error) {
	keyed := make(map[string]any, len(ctx))
	for k, v := range ctx {
		keyed[string(k)] = v
	}
	return json.Marshal(keyed)
}
