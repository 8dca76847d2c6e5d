// Package tools implements the tool capability registry: named external
// capabilities the worker can invoke, each described by a JSON Schema for
// its arguments.
//
// The registry never lets a tool failure escape as a fault. Unknown names,
// malformed arguments, schema violations, execution errors, and panics all
// become error-flagged results that flow back into the conversation as tool
// messages, so the session keeps running and the model can react.
//
// Dispatch runs the calls of one assistant turn concurrently under a
// bounded worker count and returns results in request order, each tagged
// with the call ID it answers.
package tools

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/blake3"

	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/registry"
)

// namePattern is the character set providers accept for tool names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ExecFunc runs a tool with already-validated arguments. The returned
// value is stringified for the model: strings and byte slices pass
// through, anything else is JSON-encoded.
type ExecFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool describes a capability offered to the model.
type Tool struct {
	// Name identifies the tool; letters, digits, underscore, hyphen.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the JSON Schema for the arguments object.
	// Nil means the tool takes no arguments.
	Parameters json.RawMessage

	// Exec performs the invocation.
	Exec ExecFunc

	// Limit bounds the output returned to the model. Zero values are
	// filled from per-tool defaults at registration.
	Limit OutputLimit
}

// compiledTool is a registered tool with its schema compiled for
// validation on every call.
type compiledTool struct {
	def    llm.Tool
	schema *jsonschema.Schema
	exec   ExecFunc
	limit  OutputLimit
}

// Registry holds the tools available to one session. The tool set is
// fixed at session setup; the engine only sees names, arguments, and
// results.
type Registry struct {
	tools    *registry.Registry[string, *compiledTool]
	enabled  []string
	parallel int
	timeout  time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnabled restricts the exposed tools to those matching any of the
// given glob patterns ("read_*", "web_search"). Empty means all
// registered tools are exposed.
func WithEnabled(patterns ...string) Option {
	return func(r *Registry) { r.enabled = patterns }
}

// WithParallel bounds how many tool calls of one turn run concurrently.
// Default 4.
func WithParallel(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithTimeout sets a per-invocation deadline. Zero means no deadline
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:    registry.New[string, *compiledTool](),
		parallel: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, compiling its argument schema. Registering an
// existing name replaces the previous tool.
func (r *Registry) Register(t Tool) error {
	if !namePattern.MatchString(t.Name) {
		return fmt.Errorf("tools: invalid tool name %q", t.Name)
	}
	if t.Exec == nil {
		return fmt.Errorf("tools: tool %s has no executor", t.Name)
	}

	schema, err := compileParameters(t.Name, t.Parameters)
	if err != nil {
		return fmt.Errorf("tools: tool %s schema: %w", t.Name, err)
	}

	limit := t.Limit
	if limit.MaxChars == 0 {
		limit = defaultLimit(t.Name)
	}

	r.tools.Register(t.Name, &compiledTool{
		def: llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  normalizeParameters(t.Parameters),
		},
		schema: schema,
		exec:   t.Exec,
		limit:  limit,
	})
	return nil
}

// MustRegister registers a tool, panicking on error. Intended for
// session setup where a bad tool definition is a programmer error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// RegisterAll registers a batch of tools, stopping at the first error.
func (r *Registry) RegisterAll(ts ...Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the enabled tools as model-facing definitions,
// sorted by name so prompts are deterministic.
func (r *Registry) Definitions() []llm.Tool {
	var defs []llm.Tool
	r.tools.Range(func(name string, ct *compiledTool) bool {
		if r.isEnabled(name) {
			defs = append(defs, ct.def)
		}
		return true
	})
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the names of all registered tools, enabled or not.
func (r *Registry) Names() []string {
	names := r.tools.Keys()
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return r.tools.Len()
}

// isEnabled reports whether a tool name passes the enablement globs.
func (r *Registry) isEnabled(name string) bool {
	if len(r.enabled) == 0 {
		return true
	}
	for _, pattern := range r.enabled {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Execute runs a single tool call. Every failure mode is folded into an
// error-flagged Result; Execute never returns an error and never lets a
// tool panic escape.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) Result {
	start := time.Now()
	callID := call.ID
	if callID == "" {
		callID = fallbackCallID(call)
	}

	ct, ok := r.tools.Get(call.Name)
	if !ok {
		return errorResult(call.Name, callID, fmt.Sprintf("unknown tool: %s", call.Name), defaultLimit(call.Name), start)
	}
	if !r.isEnabled(call.Name) {
		return errorResult(call.Name, callID, fmt.Sprintf("tool not available in this session: %s", call.Name), ct.limit, start)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return errorResult(call.Name, callID, fmt.Sprintf("invalid tool arguments JSON: %v", err), ct.limit, start)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := ct.schema.Validate(toValidatable(args)); err != nil {
		return errorResult(call.Name, callID, fmt.Sprintf("arguments failed schema validation: %v", err), ct.limit, start)
	}

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	value, err := safeExec(execCtx, ct.exec, args)
	if err != nil {
		msg := valueToString(value)
		if msg == "" {
			msg = err.Error()
		}
		return errorResult(call.Name, callID, msg, ct.limit, start)
	}

	res := truncate(valueToString(value), ct.limit)
	return Result{
		Tool:       call.Name,
		CallID:     callID,
		Output:     res.output,
		FullOutput: res.full,
		Truncated:  res.truncated,
		Duration:   time.Since(start),
	}
}

// Dispatch executes all calls of one assistant turn. Calls run
// concurrently under the configured parallelism; the returned slice is
// in request order and results[i] answers calls[i].
func (r *Registry) Dispatch(ctx context.Context, calls []llm.ToolCall) []Result {
	if len(calls) == 0 {
		return nil
	}
	if len(calls) == 1 {
		return []Result{r.Execute(ctx, calls[0])}
	}

	results := make([]Result, len(calls))
	limit := r.parallel
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// safeExec invokes a tool executor with panic containment.
func safeExec(ctx context.Context, exec ExecFunc, args map[string]any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return exec(ctx, args)
}

// errorResult builds an error-flagged result, applying output limits to
// the failure text as well.
func errorResult(tool, callID, msg string, limit OutputLimit, start time.Time) Result {
	res := truncate(msg, limit)
	return Result{
		Tool:       tool,
		CallID:     callID,
		Output:     res.output,
		FullOutput: res.full,
		Truncated:  res.truncated,
		IsError:    true,
		Duration:   time.Since(start),
	}
}

// fallbackCallID derives a stable ID for providers that omit one, so the
// result can still be correlated.
func fallbackCallID(call llm.ToolCall) string {
	digest := blake3.Sum256(append([]byte(call.Name), call.Arguments...))
	return "call_" + hex.EncodeToString(digest[:8])
}

// compileParameters compiles a JSON Schema document; nil becomes the
// empty-object schema so argument validation is uniform.
func compileParameters(name string, params json.RawMessage) (*jsonschema.Schema, error) {
	doc := normalizeParameters(params)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile(name + ".json")
}

// normalizeParameters substitutes the empty-object schema for nil.
func normalizeParameters(params json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	}
	return params
}

// toValidatable round-trips args through JSON so numbers take the
// float64 form the schema validator expects regardless of how the
// caller built the map.
func toValidatable(args map[string]any) any {
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return args
	}
	return doc
}

// valueToString renders a tool's return value for the model.
func valueToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
