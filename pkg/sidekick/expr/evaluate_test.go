package expr_test

import (
	"strings"
	"testing"

	"github.com/randalmurphal/sidekick/pkg/sidekick/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEval verifies operator and literal handling.
func TestEval(t *testing.T) {
	vars := map[string]any{
		"criteriaMet":     true,
		"userInputNeeded": false,
		"iteration":       3,
		"feedback":        "the summary is missing sources",
		"score":           0.85,
		"name":            "worker",
		"emptyString":     "",
	}

	tests := []struct {
		expr string
		want bool
	}{
		// Equality
		{"criteriaMet == true", true},
		{"criteriaMet == false", false},
		{"name == 'worker'", true},
		{`name == "evaluator"`, false},
		{"name != evaluator", true},

		// Numeric comparison
		{"iteration >= 3", true},
		{"iteration > 3", false},
		{"iteration < 10", true},
		{"score <= 0.85", true},
		{"score >= 0.9", false},

		// contains
		{"feedback contains missing", true},
		{"feedback contains 'sources'", true},
		{"feedback contains praise", false},

		// Boolean combinators
		{"criteriaMet == true or userInputNeeded == true", true},
		{"criteriaMet == true and userInputNeeded == true", false},
		{"criteriaMet == false or userInputNeeded == false", true},
		{"not userInputNeeded", true},
		{"!criteriaMet", false},
		{"not criteriaMet and iteration >= 3", false},

		// or binds looser than and
		{"userInputNeeded or criteriaMet and userInputNeeded", false},
		{"criteriaMet or criteriaMet and userInputNeeded", true},

		// Truthiness of bare values
		{"criteriaMet", true},
		{"userInputNeeded", false},
		{"iteration", true},
		{"emptyString", false},
		{"unknownVar", true}, // unresolved identifier is a non-empty string

		// Empty expression
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := expr.Eval(tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEval_DotPaths verifies resolution into nested maps.
func TestEval_DotPaths(t *testing.T) {
	vars := map[string]any{
		"state": map[string]any{
			"successCriteriaMet": true,
			"run": map[string]any{
				"steps": 7,
			},
		},
	}

	got, err := expr.Eval("state.successCriteriaMet == true", vars)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = expr.Eval("state.run.steps >= 5", vars)
	require.NoError(t, err)
	assert.True(t, got)

	// Missing path falls back to the literal string, which is truthy.
	got, err = expr.Eval("state.missing.path", vars)
	require.NoError(t, err)
	assert.True(t, got)
}

// TestCustomOperator verifies operator registration.
func TestCustomOperator(t *testing.T) {
	e := expr.New(expr.WithCustomOperator("startswith", func(l, r any) bool {
		ls, _ := l.(string)
		rs, _ := r.(string)
		return strings.HasPrefix(ls, rs)
	}))

	vars := map[string]any{"node": "worker-1"}

	got, err := e.Evaluate("node startswith 'worker'", vars)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = e.Evaluate("node startswith 'evaluator'", vars)
	require.NoError(t, err)
	assert.False(t, got)
}

// TestResolve verifies literal and variable resolution.
func TestResolve(t *testing.T) {
	vars := map[string]any{"x": 42}

	assert.Equal(t, "hello", expr.Resolve("'hello'", vars))
	assert.Equal(t, "hello", expr.Resolve(`"hello"`, vars))
	assert.Equal(t, true, expr.Resolve("true", vars))
	assert.Equal(t, false, expr.Resolve("FALSE", vars))
	assert.Nil(t, expr.Resolve("null", vars))
	assert.Equal(t, int64(7), expr.Resolve("7", vars))
	assert.Equal(t, 1.5, expr.Resolve("1.5", vars))
	assert.Equal(t, 42, expr.Resolve("x", vars))
	assert.Equal(t, "y", expr.Resolve("y", vars))
	assert.Equal(t, "", expr.Resolve("", vars))
}

// TestIsTruthy verifies truthiness rules.
func TestIsTruthy(t *testing.T) {
	assert.False(t, expr.IsTruthy(nil))
	assert.True(t, expr.IsTruthy(true))
	assert.False(t, expr.IsTruthy(false))
	assert.False(t, expr.IsTruthy(""))
	assert.True(t, expr.IsTruthy("x"))
	assert.False(t, expr.IsTruthy(0))
	assert.True(t, expr.IsTruthy(3))
	assert.False(t, expr.IsTruthy(0.0))
	assert.True(t, expr.IsTruthy(map[string]any{}))
}

// TestToFloat64 verifies numeric coercion.
func TestToFloat64(t *testing.T) {
	assert.Equal(t, 1.5, expr.ToFloat64(1.5))
	assert.Equal(t, 3.0, expr.ToFloat64(3))
	assert.Equal(t, 3.0, expr.ToFloat64(int64(3)))
	assert.Equal(t, 2.5, expr.ToFloat64("2.5"))
	assert.Equal(t, 0.0, expr.ToFloat64(nil))
	assert.Equal(t, 0.0, expr.ToFloat64("not a number"))
}
