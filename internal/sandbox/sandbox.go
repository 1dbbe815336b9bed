// Package sandbox evaluates model-generated analysis code against a dataset.
//
// The only capability exposed to generated code is the dataset (df), the
// tabular library (pd) and the charting library (px). Evaluation happens
// behind the Evaluator interface; PythonEvaluator runs each snippet in a
// fresh interpreter process with a scrubbed environment and a deadline.
package sandbox

import (
	"context"
	"errors"

	"github.com/datasense-ai/server/internal/dataset"
)

var (
	// ErrNoCode is returned for an empty snippet.
	ErrNoCode = errors.New("no code generated")
	// ErrBlocked is returned when a snippet uses a forbidden construct.
	ErrBlocked = errors.New("code rejected by sandbox policy")
	// ErrTimeout is returned when a snippet exceeds its wall-clock budget.
	ErrTimeout = errors.New("code execution timed out")
)

// Evaluator runs code against df and returns the value the code assigned to
// `result`: a *chart.Figure, Mapping, Sequence, *dataset.Frame, scalar,
// string, or nil when nothing was assigned.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, df *dataset.Frame) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, code string, df *dataset.Frame) (any, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, code string, df *dataset.Frame) (any, error) {
	return f(ctx, code, df)
}

// ExecError is an exception raised by the evaluated code.
type ExecError struct {
	Message string
	Stderr  string
}

func (e *ExecError) Error() string {
	return e.Message
}
