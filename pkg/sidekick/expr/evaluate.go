// Package expr evaluates boolean condition expressions for routing
// decisions. Expressions compare run state fields resolved from a
// variable map, e.g.:
//
//	criteriaMet == true or userInputNeeded == true
//	state.iteration >= 3
//	feedback contains "missing"
//
// Supported operators: ==, !=, <, >, <=, >=, contains, and, or, not/!.
// Precedence from loosest to tightest: or, and, not. There is no
// grouping; keep conditions flat or pre-compute intermediate variables.
package expr

import (
	"fmt"
	"strings"
)

// BinaryOp compares two resolved values.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval evaluates an expression using the default evaluator.
func Eval(expr string, vars map[string]any) (bool, error) {
	return New().Evaluate(expr, vars)
}

// Evaluate evaluates a boolean expression against the provided variables.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	// or has the loosest binding: split on the first top-level " or ".
	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, err := e.Evaluate(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := e.Evaluate(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left || right, nil
	}

	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, err := e.Evaluate(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := e.Evaluate(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left && right, nil
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		result, err := e.Evaluate(inner, vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok {
		result, err := e.Evaluate(inner, vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// Longer operators first to avoid partial matches.
	builtinOps := []struct {
		op      string
		compare BinaryOp
	}{
		{"==", func(l, r any) bool { return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r) }},
		{"!=", func(l, r any) bool { return fmt.Sprintf("%v", l) != fmt.Sprintf("%v", r) }},
		{">=", func(l, r any) bool { return ToFloat64(l) >= ToFloat64(r) }},
		{"<=", func(l, r any) bool { return ToFloat64(l) <= ToFloat64(r) }},
		{">", func(l, r any) bool { return ToFloat64(l) > ToFloat64(r) }},
		{"<", func(l, r any) bool { return ToFloat64(l) < ToFloat64(r) }},
		{" contains ", func(l, r any) bool {
			return strings.Contains(fmt.Sprintf("%v", l), fmt.Sprintf("%v", r))
		}},
	}

	for _, op := range builtinOps {
		if parts := strings.SplitN(expr, op.op, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), vars)
			right := Resolve(strings.TrimSpace(parts[1]), vars)
			return op.compare(left, right), nil
		}
	}

	// Custom operators are whitespace-delimited words.
	for name, fn := range e.customOps {
		opPattern := " " + name + " "
		if parts := strings.SplitN(expr, opPattern, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), vars)
			right := Resolve(strings.TrimSpace(parts[1]), vars)
			return fn(left, right), nil
		}
	}

	// Bare value: truthiness.
	return IsTruthy(Resolve(expr, vars)), nil
}
