package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for tests and examples. Responses are returned in
// order and cycle when exhausted; structured payloads are validated against
// the requested schema exactly like a real adapter's output would be.
type MockClient struct {
	mu         sync.Mutex
	responses  []*CompletionResponse
	structured []string
	err        error

	next           int
	nextStructured int

	// Calls records every Complete request, in order.
	Calls []CompletionRequest
	// StructuredCalls records every CompleteStructured request, in order.
	StructuredCalls []CompletionRequest
}

// NewMockClient creates a mock returning the given content for every
// completion until WithResponses or WithResponse replaces the queue.
func NewMockClient(content string) *MockClient {
	m := &MockClient{}
	if content != "" {
		m.responses = []*CompletionResponse{{Content: content, FinishReason: "stop", Model: "mock"}}
	}
	return m
}

// WithResponses queues plain-content responses, returned in order and
// cycling when exhausted.
func (m *MockClient) WithResponses(contents ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = m.responses[:0]
	for _, c := range contents {
		m.responses = append(m.responses, &CompletionResponse{
			Content: c, FinishReason: "stop", Model: "mock",
		})
	}
	m.next = 0
	return m
}

// WithResponse appends a full response, letting tests queue tool-call turns.
func (m *MockClient) WithResponse(resp *CompletionResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m
}

// WithStructured queues raw JSON payloads for structured completions.
func (m *MockClient) WithStructured(payloads ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured = append(m.structured, payloads...)
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("mock", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &CompletionResponse{FinishReason: "stop", Model: "mock"}, nil
	}
	resp := m.responses[m.next%len(m.responses)]
	m.next++
	out := *resp
	return &out, nil
}

// CompleteStructured implements Client.
func (m *MockClient) CompleteStructured(ctx context.Context, req CompletionRequest, schema *Schema, out any) error {
	if err := ctx.Err(); err != nil {
		return NewConnectionError("mock", err)
	}
	m.mu.Lock()
	m.StructuredCalls = append(m.StructuredCalls, req)
	err := m.err
	var payload string
	if len(m.structured) > 0 {
		payload = m.structured[m.nextStructured%len(m.structured)]
		m.nextStructured++
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return decodeStructured("mock", schema, payload, out)
}

// CallCount returns the number of Complete calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent Complete request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}
