// Package condeval implements the restricted safe-eval surface for
// `condition` node expressions (spec.md §4.8/§9): comparisons, boolean
// operators, dotted field access, and literals, parsed as a Go
// expression via go/parser and walked with an explicit node-kind
// allow-list. No repository in the retrieval pack imports an expression
// evaluator library, so this stays on the standard library — see
// DESIGN.md's per-dependency ledger for that justification.
package condeval

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"loom"
)

// maxNumericLiteralDigits bounds how large a numeric literal the grammar
// accepts before rejecting the expression outright as too complex to be
// a plain threshold check, per SPEC_FULL.md §6's supplemented
// ConditionExpressionTooComplex behavior (a deliberate redesign away
// from the original's silent clamping).
const maxNumericLiteralDigits = 15

// Evaluate parses expr as a restricted boolean expression and evaluates
// it against ctx, a dotted-path-addressable map of node outputs.
func Evaluate(expr string, ctx map[loom.NodeID]any) (bool, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return false, loom.NewError(loom.KindConditionExpressionTooComplex, expr, fmt.Errorf("parsing expression: %w", err))
	}
	v, err := evalExpr(node, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, loom.NewError(loom.KindConditionExpressionTooComplex, expr,
			fmt.Errorf("expression does not evaluate to a boolean, got %T", v))
	}
	return b, nil
}

func evalExpr(n ast.Expr, ctx map[loom.NodeID]any) (any, error) {
	switch e := n.(type) {
	case *ast.ParenExpr:
		return evalExpr(e.X, ctx)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			v, ok := lookupPath(e.Name, ctx)
			if !ok {
				return nil, loom.NewError(loom.KindUnresolvedPlaceholder, e.Name,
					fmt.Errorf("condition references unknown identifier %q", e.Name))
			}
			return v, nil
		}

	case *ast.SelectorExpr:
		path, err := selectorPath(e)
		if err != nil {
			return nil, err
		}
		v, ok := lookupPath(path, ctx)
		if !ok {
			return nil, loom.NewError(loom.KindUnresolvedPlaceholder, path,
				fmt.Errorf("condition references unknown path %q", path))
		}
		return v, nil

	case *ast.BasicLit:
		return literalValue(e)

	case *ast.UnaryExpr:
		if e.Op != token.NOT {
			return nil, unsupported(e.Op.String())
		}
		v, err := evalExpr(e.X, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("condeval: operand of ! is not boolean")
		}
		return !b, nil

	case *ast.BinaryExpr:
		return evalBinary(e, ctx)

	default:
		return nil, loom.NewError(loom.KindConditionExpressionTooComplex, "",
			fmt.Errorf("condeval: unsupported expression form %T", n))
	}
}

func evalBinary(e *ast.BinaryExpr, ctx map[loom.NodeID]any) (any, error) {
	switch e.Op {
	case token.LAND, token.LOR:
		l, err := evalExpr(e.X, ctx)
		if err != nil {
			return nil, err
		}
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("condeval: left operand of %s is not boolean", e.Op)
		}
		if e.Op == token.LAND && !lb {
			return false, nil
		}
		if e.Op == token.LOR && lb {
			return true, nil
		}
		r, err := evalExpr(e.Y, ctx)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("condeval: right operand of %s is not boolean", e.Op)
		}
		return rb, nil

	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		l, err := evalExpr(e.X, ctx)
		if err != nil {
			return nil, err
		}
		r, err := evalExpr(e.Y, ctx)
		if err != nil {
			return nil, err
		}
		return compare(e.Op, l, r)

	default:
		return nil, unsupported(e.Op.String())
	}
}

func unsupported(op string) error {
	return loom.NewError(loom.KindConditionExpressionTooComplex, op,
		fmt.Errorf("condeval: operator %q is not part of the restricted grammar", op))
}

func compare(op token.Token, l, r any) (any, error) {
	if op == token.EQL {
		return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r), nil
	}
	if op == token.NEQ {
		return fmt.Sprintf("%v", l) != fmt.Sprintf("%v", r), nil
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("condeval: ordering comparison requires numeric operands, got %T and %T", l, r)
	}
	switch op {
	case token.LSS:
		return lf < rf, nil
	case token.LEQ:
		return lf <= rf, nil
	case token.GTR:
		return lf > rf, nil
	case token.GEQ:
		return lf >= rf, nil
	}
	return nil, unsupported(op.String())
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func literalValue(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("condeval: invalid string literal %s: %w", lit.Value, err)
		}
		return s, nil
	case token.INT, token.FLOAT:
		digits := 0
		for _, r := range lit.Value {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits > maxNumericLiteralDigits {
			return nil, loom.NewError(loom.KindConditionExpressionTooComplex, lit.Value,
				fmt.Errorf("numeric literal %q exceeds the %d-digit limit", lit.Value, maxNumericLiteralDigits))
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("condeval: invalid numeric literal %s: %w", lit.Value, err)
		}
		return f, nil
	default:
		return nil, unsupported(lit.Kind.String())
	}
}

// selectorPath flattens a chain of SelectorExprs (e.g. n0.x.y) into its
// dotted string form.
func selectorPath(e *ast.SelectorExpr) (string, error) {
	base, err := selectorBase(e.X)
	if err != nil {
		return "", err
	}
	return base + "." + e.Sel.Name, nil
}

func selectorBase(n ast.Expr) (string, error) {
	switch e := n.(type) {
	case *ast.Ident:
		return e.Name, nil
	case *ast.SelectorExpr:
		base, err := selectorBase(e.X)
		if err != nil {
			return "", err
		}
		return base + "." + e.Sel.Name, nil
	default:
		return "", loom.NewError(loom.KindConditionExpressionTooComplex, "",
			fmt.Errorf("condeval: unsupported selector base %T", n))
	}
}

// lookupPath resolves a dotted path like "n0.x.y" against ctx, walking
// nested map[string]any/map[loom.NodeID]any values.
func lookupPath(path string, ctx map[loom.NodeID]any) (any, bool) {
	parts := strings.Split(path, ".")
	v, ok := ctx[loom.NodeID(parts[0])]
	if !ok {
		return nil, false
	}
	for _, p := range parts[1:] {
		m, ok := toMap(v)
		if !ok {
			return nil, false
		}
		v, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
