package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasense-ai/server/internal/agent/graph/tools"
	"github.com/datasense-ai/server/internal/agent/llm"
	"github.com/datasense-ai/server/internal/agent/llm/llmtest"
	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
)

func salesFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.Load("sales.csv", strings.NewReader("region,sales\nNorth,10\nSouth,20\n"))
	require.NoError(t, err)
	return f
}

func newNodes(t *testing.T, c llm.Client, ev sandbox.Evaluator) (*Nodes, *model.AgentState) {
	t.Helper()
	df := salesFrame(t)
	if ev == nil {
		ev = sandbox.EvaluatorFunc(func(context.Context, string, *dataset.Frame) (any, error) { return nil, nil })
	}
	n, err := New(Deps{LLM: c, Tools: tools.NewRegistry(df), Sandbox: ev})
	require.NoError(t, err)
	return n, &model.AgentState{
		InvocationID: "inv-1",
		UserPrompt:   "Show a bar chart of sales by region",
		DataSummary:  "Dataset Overview:\n- Shape: (2, 2) (rows, columns)",
		Frame:        df,
	}
}

func structuredReturning(obj map[string]any, err error) func(context.Context, string, llm.Schema) (map[string]any, error) {
	return func(context.Context, string, llm.Schema) (map[string]any, error) { return obj, err }
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestIntentRouter(t *testing.T) {
	cases := []struct {
		name string
		obj  map[string]any
		err  error
		want model.Intent
	}{
		{"bar chart", map[string]any{"intent": "bar_chart"}, nil, model.IntentBarChart},
		{"dashboard", map[string]any{"intent": "dashboard"}, nil, model.IntentDashboard},
		{"unknown intent", map[string]any{"intent": "pie_chart"}, nil, model.IntentCodeGenerator},
		{"model failure", nil, errors.New("quota"), model.IntentCodeGenerator},
		{"malformed", nil, llm.ErrMalformedOutput, model.IntentCodeGenerator},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fake := &llmtest.Client{StructuredFn: structuredReturning(c.obj, c.err)}
			n, s := newNodes(t, fake, nil)
			out, err := n.IntentRouter(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, c.want, out.Intent)
			require.Len(t, fake.Calls(), 1)
			assert.Equal(t, RouterSchema.Name, fake.Calls()[0].Schema)
		})
	}
}

func TestParameterExtractorSuccess(t *testing.T) {
	fake := &llmtest.Client{ToolCallFn: func(_ context.Context, _ string, tool *schema.ToolInfo) (map[string]any, error) {
		assert.Equal(t, tools.ToolBarChart, tool.Name)
		return map[string]any{"x_col": "region", "y_col": "sales", "title": "Sales by region"}, nil
	}}
	n, s := newNodes(t, fake, nil)
	s.Intent = model.IntentBarChart

	out, err := n.ParameterExtractor(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.HasError())
	assert.Equal(t, "region", out.ToolParams["x_col"])
	assert.Equal(t, NodeToolExecutor, DecideAfterParams(out))
}

func TestParameterExtractorFailures(t *testing.T) {
	t.Run("no tool call", func(t *testing.T) {
		fake := &llmtest.Client{ToolCallFn: func(context.Context, string, *schema.ToolInfo) (map[string]any, error) {
			return nil, llm.ErrNoToolCall
		}}
		n, s := newNodes(t, fake, nil)
		s.Intent = model.IntentHistogram
		out, err := n.ParameterExtractor(context.Background(), s)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out.Error, "parameter extraction failed: "))
		assert.Nil(t, out.ToolParams)
		assert.Equal(t, NodeCodeGenerator, DecideAfterParams(out))
	})
	t.Run("missing required field", func(t *testing.T) {
		fake := &llmtest.Client{ToolCallFn: func(context.Context, string, *schema.ToolInfo) (map[string]any, error) {
			return map[string]any{"col": "sales"}, nil
		}}
		n, s := newNodes(t, fake, nil)
		s.Intent = model.IntentHistogram
		out, err := n.ParameterExtractor(context.Background(), s)
		require.NoError(t, err)
		assert.Contains(t, out.Error, "missing required parameters: title")
	})
}

func TestToolExecutor(t *testing.T) {
	n, s := newNodes(t, &llmtest.Client{}, nil)
	s.Intent = model.IntentBarChart
	s.ToolParams = map[string]any{"x_col": "region", "y_col": "sales", "title": "Sales"}

	out, err := n.ToolExecutor(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.HasError())
	m, ok := out.ExecutionResult.(sandbox.Mapping)
	require.True(t, ok)
	require.Len(t, m, 1)
	assert.Equal(t, ToolResultKey, m[0].Key)
	assert.IsType(t, &chart.Figure{}, m[0].Value)
}

func TestToolExecutorSurfacesToolError(t *testing.T) {
	n, s := newNodes(t, &llmtest.Client{}, nil)
	s.Intent = model.IntentBarChart
	s.ToolParams = map[string]any{"x_col": "country", "y_col": "sales", "title": "Sales"}

	out, err := n.ToolExecutor(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Error, "tool execution failed: "))
	m, ok := out.ExecutionResult.(sandbox.Mapping)
	require.True(t, ok)
	_, hasErr := m.Get("error")
	assert.True(t, hasErr)
}

func TestCodeGenerator(t *testing.T) {
	var prompts []string
	fake := &llmtest.Client{CompleteFn: func(_ context.Context, p string) (string, error) {
		prompts = append(prompts, p)
		return "```python\nresult = df['sales'].sum()\n```\n", nil
	}}
	n, s := newNodes(t, fake, nil)
	s.Intent = model.IntentDashboard

	out, err := n.CodeGenerator(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Retries)
	assert.Equal(t, "```python\nresult = df['sales'].sum()\n```", out.CodeString)
	assert.Contains(t, prompts[0], "DIVERSE VISUALIZATIONS")

	out.Error = "code execution failed: KeyError: 'profit'"
	out.Intent = model.IntentCodeGenerator
	out, err = n.CodeGenerator(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Retries)
	assert.Contains(t, prompts[1], "The previous attempt failed: --- code execution failed: KeyError: 'profit' ---")
	assert.NotContains(t, prompts[1], "DIVERSE VISUALIZATIONS")
}

func TestCodeGeneratorModelFailure(t *testing.T) {
	fake := &llmtest.Client{CompleteFn: func(context.Context, string) (string, error) {
		return "", errors.New("deadline exceeded")
	}}
	n, s := newNodes(t, fake, nil)
	s.CodeString = "stale"

	out, err := n.CodeGenerator(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Retries)
	assert.Empty(t, out.CodeString)
	assert.Equal(t, "generation failed: deadline exceeded", out.Error)
}

func TestCodeExecutor(t *testing.T) {
	var gotCode string
	ev := sandbox.EvaluatorFunc(func(_ context.Context, code string, df *dataset.Frame) (any, error) {
		gotCode = code
		require.NotNil(t, df)
		if strings.Contains(code, "profit") {
			return nil, &sandbox.ExecError{Message: "KeyError: 'profit'"}
		}
		return 30.0, nil
	})
	n, s := newNodes(t, &llmtest.Client{}, ev)
	ctx := context.Background()

	s.CodeString = "Sure:\n```python\nresult = df['sales'].sum()\n```"
	s.Error = "stale"
	out, err := n.CodeExecutor(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "result = df['sales'].sum()", gotCode)
	assert.Equal(t, 30.0, out.ExecutionResult)
	assert.False(t, out.HasError())

	out.CodeString = "result = df['profit'].sum()"
	out, err = n.CodeExecutor(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "code execution failed: KeyError: 'profit'", out.Error)

	out.CodeString = "```python\n```"
	out, err = n.CodeExecutor(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, ErrNoCodeGenerated, out.Error)
}

func TestReplan(t *testing.T) {
	fake := &llmtest.Client{StructuredFn: structuredReturning(map[string]any{
		"intent":      "scatter_plot",
		"user_prompt": "Plot sales for each region.",
	}, nil)}
	n, s := newNodes(t, fake, nil)
	s.Intent = model.IntentBarChart
	s.Error = "code execution failed: KeyError"

	out, err := n.Replan(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.IntentCodeGenerator, out.Intent)
	assert.Equal(t, "Plot sales for each region.", out.UserPrompt)
	assert.False(t, out.HasError())
	assert.Equal(t, ReplanSchema.Name, fake.Calls()[0].Schema)
}

func TestReplanFailure(t *testing.T) {
	fake := &llmtest.Client{StructuredFn: structuredReturning(nil, errors.New("boom"))}
	n, s := newNodes(t, fake, nil)
	s.Intent = model.IntentDashboard
	s.Error = "code execution failed: x"

	out, err := n.Replan(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, ErrReplanFailed, out.Error)
	assert.Equal(t, model.IntentDashboard, out.Intent)
	assert.Equal(t, "Show a bar chart of sales by region", out.UserPrompt)
}

func TestResponseGeneratorFollowUps(t *testing.T) {
	fake := &llmtest.Client{ToolCallFn: func(_ context.Context, p string, tool *schema.ToolInfo) (map[string]any, error) {
		assert.Equal(t, tools.ToolFollowUp, tool.Name)
		assert.Contains(t, p, "Generated Answer: 30")
		return map[string]any{"questions": []any{"Q1?", "Q2?", "Q3?", "Q4?"}}, nil
	}}
	n, s := newNodes(t, fake, nil)
	s.ExecutionResult = 30.0

	out, err := n.ResponseGenerator(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, out.FinalResponse)
	assert.Equal(t, "30", out.FinalResponse.ResponseText)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q3?"}, out.FinalResponse.FollowUpQuestions)
}

func TestResponseGeneratorFollowUpFailureKeepsEnvelope(t *testing.T) {
	fake := &llmtest.Client{ToolCallFn: func(context.Context, string, *schema.ToolInfo) (map[string]any, error) {
		return nil, errors.New("quota")
	}}
	n, s := newNodes(t, fake, nil)
	f := chart.Histogram([]any{1.0}, "sales", "Sales")
	s.ExecutionResult = f

	out, err := n.ResponseGenerator(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, out.FinalResponse)
	assert.Same(t, f, out.FinalResponse.PlotlyFig)
	assert.Equal(t, TextChart, out.FinalResponse.ResponseText)
	assert.NotNil(t, out.FinalResponse.FollowUpQuestions)
	assert.Empty(t, out.FinalResponse.FollowUpQuestions)
}
