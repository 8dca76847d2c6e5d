package sidekick

import "github.com/randalmurphal/sidekick/pkg/sidekick/llm"

// EvaluationResult is the structured verdict of one evaluator pass. It is
// produced and validated atomically: a payload that fails schema
// validation is never partially applied to the run state.
type EvaluationResult struct {
	// Feedback explains the verdict; on rejection it is carried into the
	// next worker prompt.
	Feedback string `json:"feedback"`

	// SuccessCriteriaMet reports whether the final reply satisfies the
	// success criteria.
	SuccessCriteriaMet bool `json:"success_criteria_met"`

	// UserInputNeeded reports that the conversation cannot progress
	// without the user: a question, a clarification, or a stuck worker.
	UserInputNeeded bool `json:"user_input_needed"`
}

// evaluationSchema constrains the evaluator's structured completion.
var evaluationSchema = llm.MustCompileSchema("evaluation_result", []byte(`{
	"type": "object",
	"properties": {
		"feedback": {
			"type": "string",
			"description": "Feedback on the assistant's response"
		},
		"success_criteria_met": {
			"type": "boolean",
			"description": "Whether the success criteria have been met"
		},
		"user_input_needed": {
			"type": "boolean",
			"description": "True if more input is needed from the user, or clarifications, or the assistant is stuck"
		}
	},
	"required": ["feedback", "success_criteria_met", "user_input_needed"],
	"additionalProperties": false
}`))
