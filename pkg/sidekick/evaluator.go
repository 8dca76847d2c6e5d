package sidekick

import (
	"fmt"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/observability"
)

// evaluatorNode judges the latest assistant reply against the success
// criteria through a schema-validated completion.
//
// On a valid verdict it appends the visible feedback message and applies
// the three result fields in one step. A validation or transport failure
// leaves the state untouched by this attempt and fails the node.
func (s *Session) evaluatorNode(ctx graph.Context, state RunState) (RunState, error) {
	req := llm.CompletionRequest{
		SystemPrompt: evaluatorSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: evaluatorPrompt(state)},
		},
		Model: s.settings.LLM.Model,
	}

	var result EvaluationResult
	start := time.Now()
	err := s.client.CompleteStructured(ctx, req, evaluationSchema, &result)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordLLMCall(ctx, s.settings.LLM.Provider, s.settings.LLM.Model, duration, 0, 0, err)
		return state, fmt.Errorf("evaluator completion: %w", err)
	}
	s.metrics.RecordLLMCall(ctx, s.settings.LLM.Provider, s.settings.LLM.Model, duration, 0, 0, nil)

	state = state.Append(llm.Message{
		Role:    llm.RoleAssistant,
		Content: feedbackPrefix + result.Feedback,
	})
	state.FeedbackOnWork = result.Feedback
	state.SuccessCriteriaMet = result.SuccessCriteriaMet
	state.UserInputNeeded = result.UserInputNeeded

	observability.LogEvaluation(s.logger, s.id, result.SuccessCriteriaMet, result.UserInputNeeded)
	s.metrics.RecordEvaluation(ctx, result.SuccessCriteriaMet, result.UserInputNeeded)
	s.publish(event.NewNode(event.TypeEvaluationRecorded, s.id, NodeEvaluator, map[string]any{
		"feedback":             result.Feedback,
		"success_criteria_met": result.SuccessCriteriaMet,
		"user_input_needed":    result.UserInputNeeded,
	}))
	if result.UserInputNeeded {
		s.publish(event.New(event.TypeUserInputRequested, s.id, map[string]any{
			"feedback": result.Feedback,
		}))
	}

	return state, nil
}
