package sidekick

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
)

// TestWorkerPrompt verifies the preamble carries the clock and the
// verbatim criteria, and omits the rejection block without feedback.
func TestWorkerPrompt(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	prompt := workerPrompt(now, "Answers in French only", "")

	assert.Contains(t, prompt, "The current date and time is 2025-03-14 09:26:53")
	assert.Contains(t, prompt, "This is the success criteria:\nAnswers in French only")
	assert.NotContains(t, prompt, "rejected")
}

// TestWorkerPromptWithFeedback verifies a pending rejection appends the
// feedback block with the evaluator's text verbatim.
func TestWorkerPromptWithFeedback(t *testing.T) {
	prompt := workerPrompt(time.Now(), "criteria", "The answer ignored the churn numbers")

	assert.Contains(t, prompt, "your reply was rejected because the success criteria was not met")
	assert.Contains(t, prompt, "Here is the feedback on why this was rejected:\nThe answer ignored the churn numbers")
}

// TestEvaluatorPrompt verifies the evaluation request embeds the
// transcript, the criteria, and the literal reply under judgment.
func TestEvaluatorPrompt(t *testing.T) {
	state := RunState{
		SuccessCriteria: "A three-sentence summary",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "preamble"},
			{Role: llm.RoleUser, Content: "Summarize the report"},
			{Role: llm.RoleAssistant, Content: "Revenue grew. Churn fell. Outlook is stable."},
		},
	}

	prompt := evaluatorPrompt(state)

	assert.Contains(t, prompt, "User: Summarize the report")
	assert.Contains(t, prompt, "The success criteria for this assignment is:\nA three-sentence summary")
	assert.Contains(t, prompt, "And the final response from the Assistant that you are evaluating is:\nRevenue grew. Churn fell. Outlook is stable.")
	assert.NotContains(t, prompt, "prior attempt")
}

// TestEvaluatorPromptWithPriorFeedback verifies repeated rejections make
// the prior feedback visible to the evaluator.
func TestEvaluatorPromptWithPriorFeedback(t *testing.T) {
	state := RunState{
		SuccessCriteria: "criteria",
		FeedbackOnWork:  "Still missing the outlook section",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "try again"},
			{Role: llm.RoleAssistant, Content: "second attempt"},
		},
	}

	prompt := evaluatorPrompt(state)

	assert.Contains(t, prompt, "in a prior attempt from the Assistant, you provided this feedback: Still missing the outlook section")
	assert.Contains(t, prompt, "consider responding that user input is required")
}

// TestFormatTranscript verifies the rendering rules: user and assistant
// turns in order, tool-call-only turns as a placeholder, system and
// tool-result turns omitted.
func TestFormatTranscript(t *testing.T) {
	got := formatTranscript([]llm.Message{
		{Role: llm.RoleSystem, Content: "preamble"},
		{Role: llm.RoleUser, Content: "look up the weather"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "web_search"}}},
		{Role: llm.RoleTool, Content: "sunny, 21C", ToolCallID: "call_1"},
		{Role: llm.RoleAssistant, Content: "It is sunny and 21C."},
	})

	require.True(t, strings.HasPrefix(got, "Conversation history:\n\n"))
	assert.Contains(t, got, "User: look up the weather\n")
	assert.Contains(t, got, "Assistant: [Tools use]\n")
	assert.Contains(t, got, "Assistant: It is sunny and 21C.\n")
	assert.NotContains(t, got, "preamble")

	// The tool result itself never reaches the evaluator.
	assert.Equal(t, 1, strings.Count(got, "sunny"))
}

// TestDefaultSuccessCriteria pins the fallback criterion.
func TestDefaultSuccessCriteria(t *testing.T) {
	assert.Equal(t, "The answer should be clear and accurate", DefaultSuccessCriteria)
}
