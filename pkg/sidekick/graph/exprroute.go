package graph

import (
	"encoding/json"

	"github.com/randalmurphal/sidekick/pkg/sidekick/expr"
)

// Route pairs a boolean expression with a target node.
// The expression is evaluated against a JSON snapshot of the state, so
// variables follow the state type's JSON field names, with dot paths
// for nested fields ("run.steps").
type Route struct {
	// When is the boolean expression guarding this route.
	When string
	// To is the node ID (or END) selected when the expression is true.
	To string
}

// ExprRouter builds a RouterFunc from declarative routes.
//
// On each call the state is snapshotted to a variable map and the
// routes are tried in order; the first whose expression evaluates true
// wins. If none match (or the state cannot be snapshotted), fallback is
// returned.
//
// Example:
//
//	router := graph.ExprRouter[RunState]([]graph.Route{
//	    {When: "successCriteriaMet or userInputNeeded", To: graph.END},
//	}, "worker")
func ExprRouter[S any](routes []Route, fallback string, opts ...expr.Option) RouterFunc[S] {
	ev := expr.New(opts...)

	return func(ctx Context, state S) string {
		vars := snapshotVars(state)
		if vars == nil {
			return fallback
		}

		for _, route := range routes {
			ok, err := ev.Evaluate(route.When, vars)
			if err != nil {
				ctx.Logger().Warn("route expression failed",
					"expression", route.When,
					"error", err)
				continue
			}
			if ok {
				return route.To
			}
		}

		return fallback
	}
}

// snapshotVars converts state into an expression variable map via JSON.
// Returns nil if the state cannot be represented as a JSON object.
func snapshotVars(state any) map[string]any {
	data, err := json.Marshal(state)
	if err != nil {
		return nil
	}

	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil
	}
	return vars
}
