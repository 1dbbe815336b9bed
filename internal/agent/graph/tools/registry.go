package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/dataset"
)

// Registry binds the chart tools of one dataset to the intents they serve.
type Registry struct {
	infos map[model.Intent]*schema.ToolInfo
	tools map[model.Intent]tool.InvokableTool
}

// NewRegistry builds the chart tools over df.
func NewRegistry(df *dataset.Frame) *Registry {
	return &Registry{
		infos: map[model.Intent]*schema.ToolInfo{
			model.IntentBarChart:  BarChartTool,
			model.IntentHistogram: HistogramTool,
		},
		tools: map[model.Intent]tool.InvokableTool{
			model.IntentBarChart: utils.NewTool(BarChartTool,
				func(ctx context.Context, in *BarChartParams) (*Result, error) {
					res := CreateBarChart(df, *in)
					return &res, nil
				},
			),
			model.IntentHistogram: utils.NewTool(HistogramTool,
				func(ctx context.Context, in *HistogramParams) (*Result, error) {
					res := CreateHistogram(df, *in)
					return &res, nil
				},
			),
		},
	}
}

// Info returns the parameter schema for intent.
func (r *Registry) Info(intent model.Intent) (*schema.ToolInfo, bool) {
	info, ok := r.infos[intent]
	return info, ok
}

// Validate checks that args carries every required parameter of intent's
// schema as a non-blank string.
func (r *Registry) Validate(intent model.Intent, args map[string]any) error {
	var required []string
	switch intent {
	case model.IntentBarChart:
		required = []string{"x_col", "y_col", "title"}
	case model.IntentHistogram:
		required = []string{"col", "title"}
	default:
		return fmt.Errorf("no chart tool for intent %q", intent)
	}
	var missing []string
	for _, k := range required {
		s, ok := args[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Invoke runs intent's tool with args. Tool-level failures come back in
// Result.Error; the returned error is reserved for dispatch failures.
func (r *Registry) Invoke(ctx context.Context, intent model.Intent, args map[string]any) (Result, error) {
	t, ok := r.tools[intent]
	if !ok {
		return Result{}, fmt.Errorf("tool for intent %q not found", intent)
	}
	in, err := json.Marshal(args)
	if err != nil {
		return Result{}, fmt.Errorf("encode tool arguments: %w", err)
	}
	out, err := t.InvokableRun(ctx, string(in))
	if err != nil {
		return Result{}, fmt.Errorf("run tool %q: %w", intent, err)
	}
	var res Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return Result{}, fmt.Errorf("decode tool result: %w", err)
	}
	if res.Chart == nil && res.Error == "" {
		res.Error = "tool returned no chart"
	}
	return res, nil
}
