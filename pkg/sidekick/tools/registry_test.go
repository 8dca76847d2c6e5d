package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/tools"
)

// echoTool returns its "text" argument unchanged.
func echoTool() tools.Tool {
	return tools.Tool{
		Name:        "echo",
		Description: "Echo the input text",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"text": {"type": "string"}},
			"required": ["text"],
			"additionalProperties": false
		}`),
		Exec: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func call(name, id, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestRegisterValidation(t *testing.T) {
	r := tools.NewRegistry()

	tests := []struct {
		name string
		tool tools.Tool
		want string
	}{
		{
			name: "empty name",
			tool: tools.Tool{Name: "", Exec: echoTool().Exec},
			want: "invalid tool name",
		},
		{
			name: "name with spaces",
			tool: tools.Tool{Name: "bad name", Exec: echoTool().Exec},
			want: "invalid tool name",
		},
		{
			name: "missing executor",
			tool: tools.Tool{Name: "no_exec"},
			want: "no executor",
		},
		{
			name: "malformed schema",
			tool: tools.Tool{
				Name:       "bad_schema",
				Parameters: json.RawMessage(`{"type":`),
				Exec:       echoTool().Exec,
			},
			want: "schema",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.tool)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefinitionsSortedByName(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.RegisterAll(
		tools.Tool{Name: "zeta", Exec: echoTool().Exec},
		tools.Tool{Name: "alpha", Exec: echoTool().Exec},
		tools.Tool{Name: "mid", Exec: echoTool().Exec},
	))

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
}

func TestEnablementGlobs(t *testing.T) {
	r := tools.NewRegistry(tools.WithEnabled("read_*", "echo"))
	require.NoError(t, r.RegisterAll(
		tools.Tool{Name: "read_file", Exec: echoTool().Exec},
		tools.Tool{Name: "write_file", Exec: echoTool().Exec},
		echoTool(),
	))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "read_file", defs[1].Name)

	// Disabled tools stay registered but refuse to run.
	res := r.Execute(context.Background(), call("write_file", "c1", `{}`))
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "not available")
}

func TestExecuteSuccess(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	res := r.Execute(context.Background(), call("echo", "call-1", `{"text":"hello"}`))

	assert.False(t, res.IsError)
	assert.Equal(t, "echo", res.Tool)
	assert.Equal(t, "call-1", res.CallID)
	assert.Equal(t, "hello", res.Output)
	assert.False(t, res.Truncated)

	msg := res.Message()
	assert.Equal(t, llm.RoleTool, msg.Role)
	assert.Equal(t, "call-1", msg.ToolCallID)
	assert.Equal(t, "echo", msg.Name)
	assert.Equal(t, "hello", msg.Content)
}

// TestExecuteFailureModes verifies every failure becomes an error-flagged
// result instead of a fault.
func TestExecuteFailureModes(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	require.NoError(t, r.Register(tools.Tool{
		Name: "failing",
		Exec: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend exploded")
		},
	}))
	require.NoError(t, r.Register(tools.Tool{
		Name: "panicking",
		Exec: func(context.Context, map[string]any) (any, error) {
			panic("tool bug")
		},
	}))

	tests := []struct {
		name string
		call llm.ToolCall
		want string
	}{
		{"unknown tool", call("nope", "c1", `{}`), "unknown tool"},
		{"malformed arguments json", call("echo", "c2", `{"text":`), "invalid tool arguments JSON"},
		{"schema violation wrong type", call("echo", "c3", `{"text": 42}`), "schema validation"},
		{"schema violation missing required", call("echo", "c4", `{}`), "schema validation"},
		{"schema violation extra property", call("echo", "c5", `{"text":"x","extra":1}`), "schema validation"},
		{"executor error", call("failing", "c6", `{}`), "backend exploded"},
		{"executor panic", call("panicking", "c7", `{}`), "tool panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(context.Background(), tt.call)
			assert.True(t, res.IsError)
			assert.Contains(t, res.Output, tt.want)
			assert.Equal(t, tt.call.ID, res.CallID)
			assert.True(t, strings.HasPrefix(res.Message().Content, "Error: "))
		})
	}
}

func TestExecuteFallbackCallID(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	res := r.Execute(context.Background(), call("echo", "", `{"text":"x"}`))
	assert.True(t, strings.HasPrefix(res.CallID, "call_"))

	// Same call derives the same ID.
	again := r.Execute(context.Background(), call("echo", "", `{"text":"x"}`))
	assert.Equal(t, res.CallID, again.CallID)
}

func TestExecuteTruncatesOutput(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Tool{
		Name:  "verbose",
		Limit: tools.OutputLimit{MaxChars: 100, Strategy: tools.HeadTail},
		Exec: func(context.Context, map[string]any) (any, error) {
			return strings.Repeat("x", 500), nil
		},
	}))

	res := r.Execute(context.Background(), call("verbose", "c1", `{}`))
	assert.False(t, res.IsError)
	assert.True(t, res.Truncated)
	assert.Contains(t, res.Output, "truncated")
	assert.Len(t, res.FullOutput, 500)
	assert.Less(t, len(res.Output), 500)
}

func TestExecuteJSONStringifiesValues(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Tool{
		Name: "structured",
		Exec: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"count": 3, "ok": true}, nil
		},
	}))

	res := r.Execute(context.Background(), call("structured", "c1", `{}`))
	require.False(t, res.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &decoded))
	assert.Equal(t, float64(3), decoded["count"])
	assert.Equal(t, true, decoded["ok"])
}

func TestExecuteTimeout(t *testing.T) {
	r := tools.NewRegistry(tools.WithTimeout(20 * time.Millisecond))
	require.NoError(t, r.Register(tools.Tool{
		Name: "slow",
		Exec: func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		},
	}))

	start := time.Now()
	res := r.Execute(context.Background(), call("slow", "c1", `{}`))
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "context deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

// TestDispatchPreservesRequestOrder verifies results line up with calls
// regardless of completion order.
func TestDispatchPreservesRequestOrder(t *testing.T) {
	r := tools.NewRegistry(tools.WithParallel(4))
	require.NoError(t, r.Register(tools.Tool{
		Name: "delayed_echo",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string"},
				"delay_ms": {"type": "number"}
			},
			"required": ["text"],
			"additionalProperties": false
		}`),
		Exec: func(_ context.Context, args map[string]any) (any, error) {
			if d, ok := args["delay_ms"].(float64); ok {
				time.Sleep(time.Duration(d) * time.Millisecond)
			}
			return args["text"], nil
		},
	}))

	calls := []llm.ToolCall{
		call("delayed_echo", "c1", `{"text":"first","delay_ms":50}`),
		call("delayed_echo", "c2", `{"text":"second","delay_ms":10}`),
		call("delayed_echo", "c3", `{"text":"third"}`),
	}

	results := r.Dispatch(context.Background(), calls)
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].CallID)
	assert.Equal(t, "first", results[0].Output)
	assert.Equal(t, "c2", results[1].CallID)
	assert.Equal(t, "second", results[1].Output)
	assert.Equal(t, "c3", results[2].CallID)
	assert.Equal(t, "third", results[2].Output)
}

// TestDispatchBoundsConcurrency verifies no more than the configured
// number of calls run at once.
func TestDispatchBoundsConcurrency(t *testing.T) {
	var active, peak int64
	var mu sync.Mutex

	r := tools.NewRegistry(tools.WithParallel(2))
	require.NoError(t, r.Register(tools.Tool{
		Name: "tracked",
		Exec: func(context.Context, map[string]any) (any, error) {
			n := atomic.AddInt64(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return "ok", nil
		},
	}))

	calls := make([]llm.ToolCall, 6)
	for i := range calls {
		calls[i] = call("tracked", "", `{}`)
	}

	results := r.Dispatch(context.Background(), calls)
	require.Len(t, results, 6)
	for _, res := range results {
		assert.False(t, res.IsError)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int64(2))
}

func TestDispatchMixedOutcomes(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	results := r.Dispatch(context.Background(), []llm.ToolCall{
		call("echo", "ok", `{"text":"fine"}`),
		call("missing", "bad", `{}`),
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
}

func TestDispatchEmpty(t *testing.T) {
	r := tools.NewRegistry()
	assert.Nil(t, r.Dispatch(context.Background(), nil))
}

func TestRegistryNamesAndLen(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.RegisterAll(echoTool(), tools.Tool{Name: "other", Exec: echoTool().Exec}))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "other"}, r.Names())
}

func TestNoArgumentTool(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Tool{
		Name: "ping",
		Exec: func(context.Context, map[string]any) (any, error) { return "pong", nil },
	}))

	// Nil arguments validate against the implicit empty-object schema.
	res := r.Execute(context.Background(), llm.ToolCall{ID: "c1", Name: "ping"})
	assert.False(t, res.IsError)
	assert.Equal(t, "pong", res.Output)

	// Extra arguments are rejected by the same schema.
	rejected := r.Execute(context.Background(), call("ping", "c2", `{"unexpected":1}`))
	assert.True(t, rejected.IsError)
}
