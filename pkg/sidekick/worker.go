package sidekick

import (
	"fmt"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
)

// workerNode produces the next assistant turn, using tools as needed.
//
// It rebuilds the system preamble (task framing, timestamp, criteria,
// pending rejection feedback), invokes the tool-bound completion with
// the full sequence, and appends the returned message, which may carry
// tool calls. It never touches the evaluation flags.
func (s *Session) workerNode(ctx graph.Context, state RunState) (RunState, error) {
	state = state.EnsureSystemPreamble(workerPrompt(s.clock(), state.SuccessCriteria, state.FeedbackOnWork))

	req := llm.CompletionRequest{
		Messages: state.Messages,
		Model:    s.settings.LLM.Model,
		Tools:    s.tools.Definitions(),
	}

	start := time.Now()
	resp, err := s.client.Complete(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordLLMCall(ctx, s.settings.LLM.Provider, s.settings.LLM.Model, duration, 0, 0, err)
		return state, fmt.Errorf("worker completion: %w", err)
	}
	s.metrics.RecordLLMCall(ctx, s.settings.LLM.Provider, s.settings.LLM.Model, duration,
		resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)

	reply := resp.Message()
	s.publish(event.NewNode(event.TypeNodeCompleted, s.id, NodeWorker, map[string]any{
		"content":    reply.Content,
		"tool_calls": len(reply.ToolCalls),
	}))

	return state.Append(reply), nil
}
