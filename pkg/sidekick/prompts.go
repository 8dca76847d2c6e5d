package sidekick

import (
	"strings"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/template"
)

// DefaultSuccessCriteria applies when a step supplies no criteria.
const DefaultSuccessCriteria = "The answer should be clear and accurate"

// feedbackPrefix marks the evaluator's visible message in the history.
const feedbackPrefix = "Evaluator Feedback on this answer: "

// timestampLayout is the clock format embedded in the worker prompt.
const timestampLayout = "2006-01-02 15:04:05"

// prompts is the expander for the fixed templates below; unknown
// placeholders are programmer errors.
var prompts = template.New(template.WithMissing(template.MissingError))

const workerPromptTemplate = `You are a helpful assistant that can use tools to complete tasks.
You keep working on a task until either you have a question or clarification for the user, or the success criteria is met.
You have tools to help you; use them whenever they get you closer to completing the task.
The current date and time is ${datetime}

This is the success criteria:
${criteria}
You should reply either with a question for the user about this assignment, or with your final response.
If you have a question for the user, you need to reply by clearly stating your question. An example might be:

Question: please clarify whether you want a summary or a detailed answer

If you've finished, reply with the final answer, and don't ask a question; simply reply with the answer.`

const workerFeedbackTemplate = `
Previously you thought you completed the assignment, but your reply was rejected because the success criteria was not met.
Here is the feedback on why this was rejected:
${feedback}
With this feedback, please continue the assignment, ensuring that you meet the success criteria or have a question for the user.`

const evaluatorSystemPrompt = `You are an evaluator that determines if a task has been completed successfully by an Assistant.
Assess the Assistant's last response based on the given criteria. Respond with your feedback, and with your decision on whether the success criteria has been met, and whether more input is needed from the user.`

const evaluatorUserTemplate = `You are evaluating a conversation between the User and Assistant. You decide what action to take based on the last response from the Assistant.

The entire conversation with the assistant, with the user's original request and all replies, is:
${conversation}

The success criteria for this assignment is:
${criteria}

And the final response from the Assistant that you are evaluating is:
${reply}

Respond with your feedback, and decide if the success criteria is met by this response.
Also, decide if more user input is required, either because the assistant has a question, needs clarification, or seems to be stuck and unable to answer without help.

The Assistant has access to a tool to write files. If the Assistant says they have written a file, then you can assume they have done so.
Overall you should give the Assistant the benefit of the doubt if they say they've done something. But you should reject if you feel that more work should go into this.
`

const evaluatorFeedbackTemplate = `Also, note that in a prior attempt from the Assistant, you provided this feedback: ${feedback}
If you're seeing the Assistant repeating the same mistakes, then consider responding that user input is required.`

// workerPrompt builds the system preamble for a worker pass: task
// framing, current timestamp, the verbatim success criteria, and the
// rejection feedback block when a prior evaluator pass set one.
func workerPrompt(now time.Time, criteria, feedback string) string {
	prompt := prompts.MustExpand(workerPromptTemplate, map[string]any{
		"datetime": now.Format(timestampLayout),
		"criteria": criteria,
	})
	if feedback != "" {
		prompt += prompts.MustExpand(workerFeedbackTemplate, map[string]any{
			"feedback": feedback,
		})
	}
	return prompt
}

// evaluatorPrompt builds the user-role evaluation request: the rendered
// transcript, the criteria, the literal final reply, and the prior
// feedback plus the repeated-failure instruction when one exists.
func evaluatorPrompt(state RunState) string {
	last, _ := state.LastMessage()
	prompt := prompts.MustExpand(evaluatorUserTemplate, map[string]any{
		"conversation": formatTranscript(state.Messages),
		"criteria":     state.SuccessCriteria,
		"reply":        last.Content,
	})
	if state.FeedbackOnWork != "" {
		prompt += prompts.MustExpand(evaluatorFeedbackTemplate, map[string]any{
			"feedback": state.FeedbackOnWork,
		})
	}
	return prompt
}

// formatTranscript renders the message sequence as a linear transcript
// for the evaluator. System and tool-result turns are omitted; assistant
// turns that carried only tool calls render as a placeholder.
func formatTranscript(msgs []llm.Message) string {
	var b strings.Builder
	b.WriteString("Conversation history:\n\n")
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleUser:
			b.WriteString("User: " + m.Content + "\n")
		case llm.RoleAssistant:
			text := m.Content
			if text == "" {
				text = "[Tools use]"
			}
			b.WriteString("Assistant: " + text + "\n")
		}
	}
	return b.String()
}
