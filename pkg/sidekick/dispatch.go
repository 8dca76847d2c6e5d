package sidekick

import (
	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/observability"
)

// toolsNode runs every tool call of the last worker turn and appends the
// correlated results.
//
// Failures never abort the run: the registry folds unknown tools, bad
// arguments, and execution errors into error-flagged results, which land
// in the history as tool messages for the next worker pass to react to.
// Calls may execute concurrently; results are appended in request order,
// each tagged with the call id it answers.
func (s *Session) toolsNode(ctx graph.Context, state RunState) (RunState, error) {
	last, ok := state.LastMessage()
	if !ok || last.Kind() != llm.KindToolCall {
		return state, nil
	}

	for _, call := range last.ToolCalls {
		s.publish(event.NewNode(event.TypeToolDispatched, s.id, NodeTools, map[string]any{
			"tool":    call.Name,
			"call_id": call.ID,
		}))
	}

	results := s.tools.Dispatch(ctx, last.ToolCalls)

	msgs := make([]llm.Message, 0, len(results))
	for _, res := range results {
		observability.LogToolCall(s.logger, res.Tool, res.CallID,
			float64(res.Duration.Milliseconds()), res.IsError)
		s.metrics.RecordToolExecution(ctx, res.Tool, res.Duration, res.IsError)
		s.publish(event.NewNode(event.TypeToolCompleted, s.id, NodeTools, map[string]any{
			"tool":     res.Tool,
			"call_id":  res.CallID,
			"is_error": res.IsError,
			"output":   res.FullOutput,
		}))
		msgs = append(msgs, res.Message())
	}

	return state.Append(msgs...), nil
}
