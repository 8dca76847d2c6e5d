package sidekick

import (
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
)

// Node identifiers of the agent state machine.
const (
	NodeWorker    = "worker"
	NodeTools     = "tools"
	NodeEvaluator = "evaluator"
)

// Transition enumerates where the state machine goes next. Routers
// return a Transition rather than a raw node string so every routing
// decision is checkable against the full set of states.
type Transition int

const (
	// ToTools runs the pending tool calls of the last worker turn.
	ToTools Transition = iota
	// ToEvaluator judges the last worker reply.
	ToEvaluator
	// ToWorker hands rejected work back for another attempt.
	ToWorker
	// ToEnd terminates the superstep.
	ToEnd
)

// String returns the transition name.
func (t Transition) String() string {
	switch t {
	case ToTools:
		return "tools"
	case ToEvaluator:
		return "evaluator"
	case ToWorker:
		return "worker"
	case ToEnd:
		return "end"
	default:
		return "unknown"
	}
}

// target maps a transition to its engine node identifier.
func (t Transition) target() string {
	switch t {
	case ToTools:
		return NodeTools
	case ToEvaluator:
		return NodeEvaluator
	case ToWorker:
		return NodeWorker
	default:
		return graph.END
	}
}

// RouteAfterWorker decides the step after a worker pass. Pure and total:
// ToTools iff the last message carries tool calls, else ToEvaluator.
func RouteAfterWorker(state RunState) Transition {
	last, ok := state.LastMessage()
	if ok && last.Kind() == llm.KindToolCall {
		return ToTools
	}
	return ToEvaluator
}

// RouteAfterEvaluation decides the step after an evaluator pass. Pure
// and total: ToEnd iff the criteria are met or user input is needed,
// else ToWorker, carrying the updated feedback into the next attempt.
func RouteAfterEvaluation(state RunState) Transition {
	if state.SuccessCriteriaMet || state.UserInputNeeded {
		return ToEnd
	}
	return ToWorker
}

// workerRouter and evaluationRouter adapt the pure transitions to the
// engine's conditional edge signature.

func workerRouter(_ graph.Context, state RunState) string {
	return RouteAfterWorker(state).target()
}

func evaluationRouter(_ graph.Context, state RunState) string {
	return RouteAfterEvaluation(state).target()
}
