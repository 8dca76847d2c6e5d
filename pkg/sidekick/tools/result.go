package tools

import (
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
)

// Result is the outcome of one tool call. Failures are carried here too,
// flagged with IsError, so the dispatcher can always answer every call
// it was handed.
type Result struct {
	// Tool is the name of the tool that ran.
	Tool string

	// CallID correlates the result with the call that requested it.
	CallID string

	// Output is the (possibly truncated) text handed back to the model.
	Output string

	// FullOutput is the untruncated output, kept for event observers.
	FullOutput string

	// Truncated reports whether Output was cut down from FullOutput.
	Truncated bool

	// IsError marks results for unknown tools, invalid arguments, and
	// execution failures.
	IsError bool

	// Duration is wall-clock execution time.
	Duration time.Duration
}

// Message converts the result into the tool turn appended to the
// conversation.
func (r Result) Message() llm.Message {
	content := r.Output
	if r.IsError {
		content = "Error: " + content
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: r.CallID,
		Name:       r.Tool,
	}
}
