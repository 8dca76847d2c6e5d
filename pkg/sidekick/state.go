package sidekick

import "github.com/randalmurphal/sidekick/pkg/sidekick/llm"

// RunState is the conversation state threaded through one superstep and
// persisted between supersteps. It is the state type the graph engine
// executes over.
//
// Messages is append-only: once part of the sequence a message is never
// removed or reordered. The single sanctioned exception is
// EnsureSystemPreamble, which normalizes the leading system message.
type RunState struct {
	Messages           []llm.Message `json:"messages"`
	SuccessCriteria    string        `json:"success_criteria"`
	FeedbackOnWork     string        `json:"feedback_on_work,omitempty"`
	SuccessCriteriaMet bool          `json:"success_criteria_met"`
	UserInputNeeded    bool          `json:"user_input_needed"`
}

// Append returns a state with msgs added at the end of the sequence.
// The returned state never shares a backing array with the receiver, so
// the caller's snapshot stays intact if the new state is discarded.
func (s RunState) Append(msgs ...llm.Message) RunState {
	out := make([]llm.Message, len(s.Messages), len(s.Messages)+len(msgs))
	copy(out, s.Messages)
	s.Messages = append(out, msgs...)
	return s
}

// EnsureSystemPreamble returns a state whose message sequence starts with
// exactly one system message carrying content. An existing system message
// is replaced; otherwise one is prepended. This is the sole mutation of
// already-appended history.
func (s RunState) EnsureSystemPreamble(content string) RunState {
	msgs := make([]llm.Message, 0, len(s.Messages)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: content})
	for _, m := range s.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	s.Messages = msgs
	return s
}

// LastMessage returns the final message of the sequence, if any.
func (s RunState) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// clone returns a state whose message slice is independent of the
// receiver's. Scalar fields copy by value.
func (s RunState) clone() RunState {
	if s.Messages != nil {
		msgs := make([]llm.Message, len(s.Messages))
		copy(msgs, s.Messages)
		s.Messages = msgs
	}
	return s
}
