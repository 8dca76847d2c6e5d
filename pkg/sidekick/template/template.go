// Package template expands ${name} placeholders in strings. The prompt
// builder uses it to assemble system and evaluation prompts; the config
// loader uses it to substitute environment values into settings files.
//
// Only the ${name} form is recognized. A bare $name is left untouched so
// prompt text and shell-ish config values keep their dollars.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches ${name} where name is alphanumeric/underscore.
var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction controls what happens when a placeholder has no value.
type MissingAction int

const (
	// MissingKeep leaves unknown placeholders as-is.
	MissingKeep MissingAction = iota
	// MissingEmpty replaces unknown placeholders with the empty string.
	MissingEmpty
	// MissingError makes Expand fail listing the unknown names.
	MissingError
)

// Expander expands ${name} placeholders. Safe for concurrent use after
// construction.
type Expander struct {
	missing MissingAction
}

// Option configures an Expander.
type Option func(*Expander)

// WithMissing sets the behavior for unknown placeholders.
func WithMissing(action MissingAction) Option {
	return func(e *Expander) { e.missing = action }
}

// New creates an Expander. The default keeps unknown placeholders as-is.
func New(opts ...Option) *Expander {
	e := &Expander{missing: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand substitutes placeholder values in s. An error is returned only
// with MissingError, and it names every unresolved placeholder.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		switch e.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// MustExpand is Expand that panics on error. Intended for templates whose
// variable sets are fixed at compile time.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandMap expands placeholders in every string value of m, recursing into
// nested maps. Non-string values are copied as-is.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		result[k] = expanded
	}
	return result, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// UndefinedVariableError is returned with MissingError when one or more
// placeholders have no value.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// defaultExpander backs the package-level helpers.
var defaultExpander = New()

// Expand substitutes placeholders with MissingKeep behavior.
func Expand(s string, vars map[string]any) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// ExpandMap expands all string values with MissingKeep behavior.
func ExpandMap(m map[string]any, vars map[string]any) map[string]any {
	result, _ := defaultExpander.ExpandMap(m, vars)
	return result
}
