// Package llm defines the LLM capability boundary: conversation types, a
// provider-neutral Client interface, and the error taxonomy adapters must
// speak. Concrete adapters (OpenAI-compatible HTTP, Claude CLI) and a mock
// for tests live alongside the interface; the orchestration core depends on
// the interface only.
package llm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Client is the capability interface the orchestrator is constructed with.
//
// Complete may return a message carrying tool calls instead of final
// content. CompleteStructured constrains the provider to a fixed result
// schema and fails with a *ValidationError when the output cannot be
// parsed and validated into that shape.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	CompleteStructured(ctx context.Context, req CompletionRequest, schema *Schema, out any) error
}

// Schema is a compiled JSON Schema used to constrain structured completions.
//
// The raw document is sent to providers that support schema-constrained
// output; the compiled form validates whatever comes back before it is
// unmarshaled into the caller's type.
type Schema struct {
	Name     string
	Raw      []byte
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document for structured completions.
func CompileSchema(name string, raw []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %q: %w", name, err)
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return &Schema{Name: name, Raw: raw, compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema that panics on error. Intended for
// package-level schema constants.
func MustCompileSchema(name string, raw []byte) *Schema {
	s, err := CompileSchema(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded JSON document against the schema.
func (s *Schema) Validate(doc any) error {
	return s.compiled.Validate(doc)
}
