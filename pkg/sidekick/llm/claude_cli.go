package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI implements Client using the Claude CLI binary.
//
// The CLI surface has no function-calling wire format, so requests that
// bind tools get content-only replies; structured completions embed the
// schema in the prompt and validate the JSON the model prints back.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeOption configures ClaudeCLI.
type ClaudeOption func(*ClaudeCLI)

// NewClaudeCLI creates a new Claude CLI client.
// Assumes "claude" is available in PATH unless overridden with WithClaudePath.
func NewClaudeCLI(opts ...ClaudeOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClaudePath sets the path to the claude binary.
func WithClaudePath(path string) ClaudeOption {
	return func(c *ClaudeCLI) { c.path = path }
}

// WithClaudeModel sets the default model.
func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeCLI) { c.model = model }
}

// WithClaudeWorkdir sets the working directory for claude commands.
func WithClaudeWorkdir(dir string) ClaudeOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

// WithClaudeTimeout sets the default timeout for commands.
func WithClaudeTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

// Complete implements Client.
func (c *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(req)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewTimeoutError("claude-cli", ctx.Err())
		}
		if ctx.Err() != nil {
			return nil, NewConnectionError("claude-cli", ctx.Err())
		}
		errMsg := strings.TrimSpace(stderr.String())
		return nil, &UnknownError{transportBase{
			provider:  "claude-cli",
			message:   errMsg,
			retryable: isTransientCLIError(errMsg),
			err:       err,
		}}
	}

	return &CompletionResponse{
		Content:      strings.TrimSpace(stdout.String()),
		Model:        c.model,
		FinishReason: "stop",
		Duration:     time.Since(start),
	}, nil
}

// CompleteStructured implements Client. The schema travels inside the
// system prompt; the model's output is parsed as JSON (tolerating fenced
// code blocks) and validated before unmarshaling.
func (c *ClaudeCLI) CompleteStructured(ctx context.Context, req CompletionRequest, schema *Schema, out any) error {
	instruction := fmt.Sprintf(
		"Respond with a single JSON object matching this JSON Schema and nothing else:\n%s",
		schema.Raw)
	if req.SystemPrompt != "" {
		req.SystemPrompt = req.SystemPrompt + "\n\n" + instruction
	} else {
		req.SystemPrompt = instruction
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return decodeStructured("claude-cli", schema, extractJSON(resp.Content), out)
}

// buildArgs constructs CLI arguments from a request.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"--print"}

	system := req.SystemPrompt
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem && system == "" {
			system = msg.Content
		}
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	// Model priority: request > client default
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	if req.MaxTokens > 0 {
		args = append(args, "--max-tokens", fmt.Sprintf("%d", req.MaxTokens))
	}

	// The CLI expects a single prompt; render the conversation as
	// alternating turns.
	var prompt strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			if prompt.Len() > 0 {
				prompt.WriteString("\n\nUser: ")
			}
			prompt.WriteString(msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				prompt.WriteString("\n\nAssistant: ")
				prompt.WriteString(msg.Content)
			}
		case RoleTool:
			prompt.WriteString("\n\nTool result: ")
			prompt.WriteString(msg.Content)
		}
	}

	promptStr := strings.TrimSpace(prompt.String())
	if promptStr != "" {
		args = append(args, "-p", promptStr)
	}
	return args
}

// extractJSON strips markdown fences the CLI sometimes wraps JSON in.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// isTransientCLIError checks if an error message indicates a transient error.
func isTransientCLIError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}
