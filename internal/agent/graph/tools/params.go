package tools

import (
	"github.com/cloudwego/eino/schema"
)

// ===================================
// Parameter Schemas
// ===================================

const (
	ToolBarChart  = "BarChartParams"
	ToolHistogram = "HistogramParams"
	ToolFollowUp  = "FollowUp"

	// MaxFollowUpQuestions caps the suggestions attached to one response.
	MaxFollowUpQuestions = 3
)

type BarChartParams struct {
	XCol  string `json:"x_col"`
	YCol  string `json:"y_col"`
	Title string `json:"title"`
}

type HistogramParams struct {
	Col   string `json:"col"`
	Title string `json:"title"`
}

type FollowUpParams struct {
	Questions []string `json:"questions"`
}

var BarChartTool = &schema.ToolInfo{
	Name: ToolBarChart,
	Desc: "Parameters for a bar chart of one column against another. Column names must match the dataset exactly.",
	ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"x_col": {
			Type:     schema.String,
			Desc:     "The column for the x-axis.",
			Required: true,
		},
		"y_col": {
			Type:     schema.String,
			Desc:     "The column for the y-axis.",
			Required: true,
		},
		"title": {
			Type:     schema.String,
			Desc:     "The chart title.",
			Required: true,
		},
	}),
}

var HistogramTool = &schema.ToolInfo{
	Name: ToolHistogram,
	Desc: "Parameters for a histogram of a single column. The column name must match the dataset exactly.",
	ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"col": {
			Type:     schema.String,
			Desc:     "The column for the histogram.",
			Required: true,
		},
		"title": {
			Type:     schema.String,
			Desc:     "The chart title.",
			Required: true,
		},
	}),
}

var FollowUpTool = &schema.ToolInfo{
	Name: ToolFollowUp,
	Desc: "Suggest follow-up questions the user could ask next.",
	ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"questions": {
			Type:     schema.Array,
			Desc:     "List of 2-3 follow-up questions.",
			ElemInfo: &schema.ParameterInfo{Type: schema.String},
			Required: true,
		},
	}),
}

// FollowUpQuestions reads the questions argument of a FollowUp call,
// dropping blanks and keeping at most limit entries.
func FollowUpQuestions(args map[string]any, limit int) []string {
	if limit <= 0 || limit > MaxFollowUpQuestions {
		limit = MaxFollowUpQuestions
	}
	raw, _ := args["questions"].([]any)
	out := make([]string, 0, limit)
	for _, q := range raw {
		s, ok := q.(string)
		if !ok || s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
