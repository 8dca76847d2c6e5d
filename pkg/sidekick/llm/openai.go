package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAITimeout = 60 * time.Second
)

// OpenAI implements Client against any OpenAI-compatible chat completions
// endpoint. Tool calls are mapped to the function-calling wire format and
// structured completions use schema-constrained response_format.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAI client.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the client at a compatible endpoint (proxies, local
// servers). Trailing slashes are trimmed.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAI) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIModel sets the default model for requests that do not name one.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAI) { c.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAI) { c.httpClient = hc }
}

// WithOpenAITimeout sets the per-request timeout on the default HTTP client.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAI) { c.httpClient.Timeout = d }
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := &OpenAI{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultOpenAIBaseURL,
		model:      defaultOpenAIModel,
		httpClient: &http.Client{Timeout: defaultOpenAITimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Wire types for the chat completions schema.

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaToolCall struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaTool struct {
	Type     string       `json:"type"`
	Function oaToolSchema `json:"function"`
}

type oaToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      oaMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := c.buildBody(req)
	decoded, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(decoded.Choices) == 0 {
		return nil, &InvalidRequestError{transportBase{
			provider: "openai",
			message:  "response contained no choices",
		}}
	}

	choice := decoded.Choices[0]
	resp := &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        decoded.Model,
		FinishReason: choice.FinishReason,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}

// CompleteStructured implements Client. The schema is sent as a strict
// response_format; whatever comes back is validated against the compiled
// schema before being unmarshaled into out.
func (c *OpenAI) CompleteStructured(ctx context.Context, req CompletionRequest, schema *Schema, out any) error {
	body := c.buildBody(req)
	body["response_format"] = map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schema.Name,
			"schema": json.RawMessage(schema.Raw),
			"strict": true,
		},
	}

	decoded, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	if len(decoded.Choices) == 0 {
		return &InvalidRequestError{transportBase{
			provider: "openai",
			message:  "response contained no choices",
		}}
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	return decodeStructured("openai", schema, content, out)
}

func (c *OpenAI) buildBody(req CompletionRequest) map[string]any {
	messages := make([]oaMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oaMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		om := oaMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, oaToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: oaFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		messages = append(messages, om)
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_completion_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if len(req.Tools) > 0 {
		tools := make([]oaTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, oaTool{
				Type: "function",
				Function: oaToolSchema{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}
	for k, v := range req.Options {
		body[k] = v
	}
	return body
}

func (c *OpenAI) post(ctx context.Context, body map[string]any) (*oaResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewTimeoutError("openai", err)
		}
		return nil, NewConnectionError("openai", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewConnectionError("openai", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(string(raw))
		var decoded oaResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil {
			msg = decoded.Error.Message
		}
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, ErrorFromStatus("openai", resp.StatusCode, msg, retryAfter)
	}

	var decoded oaResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, NewConnectionError("openai", fmt.Errorf("decode response: %w", err))
	}
	return &decoded, nil
}

// decodeStructured validates provider output against the schema and
// unmarshals it into out. Shared by adapters that receive structured
// results as JSON text.
func decodeStructured(provider string, schema *Schema, content string, out any) error {
	if content == "" {
		return NewValidationError(provider, schema.Name, content,
			errors.New("empty structured output"))
	}
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return NewValidationError(provider, schema.Name, content, err)
	}
	if err := schema.Validate(doc); err != nil {
		return NewValidationError(provider, schema.Name, content, err)
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return NewValidationError(provider, schema.Name, content, err)
	}
	return nil
}
