// Package llm is the language-model client used by the agent nodes. It
// offers three call modes over one chat model: free-text completion,
// schema-constrained structured output and single tool-call extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

var (
	// ErrNoToolCall is returned by ToolCall when the model answered without
	// calling the bound tool, i.e. required arguments could not be resolved.
	ErrNoToolCall = errors.New("model returned no tool call")
	// ErrMalformedOutput is returned when a structured reply does not match its schema.
	ErrMalformedOutput = errors.New("malformed structured output")
)

// Client is the capability interface the agent nodes depend on.
type Client interface {
	// Complete returns the raw text of a single completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// Structured returns an object whose fields satisfy s.
	Structured(ctx context.Context, prompt string, s Schema) (map[string]any, error)
	// ToolCall binds exactly one tool and returns the arguments of its call.
	ToolCall(ctx context.Context, prompt string, tool *schema.ToolInfo) (map[string]any, error)
}

// FieldType is the primitive type of a structured output field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldList    FieldType = "array"
)

// Field is one declared key of a structured reply.
type Field struct {
	Name string
	Type FieldType
	Desc string
}

// Schema describes the object expected from a structured call.
type Schema struct {
	Name   string
	Fields []Field
}

// Instruction renders the output contract appended to structured prompts.
func (s Schema) Instruction() string {
	var b strings.Builder
	b.WriteString("\n\nRespond with a single JSON object and nothing else. ")
	fmt.Fprintf(&b, "The object (%s) must contain exactly these fields:\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %q (%s): %s\n", f.Name, f.Type, f.Desc)
	}
	return b.String()
}

// Validate checks that every declared field is present with its declared type.
func (s Schema) Validate(obj map[string]any) error {
	for _, f := range s.Fields {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			return fmt.Errorf("%w: %s: missing field %q", ErrMalformedOutput, s.Name, f.Name)
		}
		if !f.Type.accepts(v) {
			return fmt.Errorf("%w: %s: field %q is %T, want %s", ErrMalformedOutput, s.Name, f.Name, v, f.Type)
		}
	}
	return nil
}

func (t FieldType) accepts(v any) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		_, ok := v.(float64)
		return ok
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldList:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
