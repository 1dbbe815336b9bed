package tools

import (
	"fmt"

	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
)

// Result is what a chart tool returns: a chart, or the reason it could not
// build one. The JSON keys follow the plotly_fig convention the responder
// recognises.
type Result struct {
	Chart *chart.Figure `json:"plotly_fig,omitempty"`
	Error string        `json:"error,omitempty"`
}

func failed(err error) Result {
	return Result{Error: err.Error()}
}

// CreateBarChart plots y_col against x_col, one bar per row.
func CreateBarChart(df *dataset.Frame, p BarChartParams) Result {
	if df == nil {
		return failed(fmt.Errorf("no dataset loaded"))
	}
	x, err := df.Values(p.XCol)
	if err != nil {
		return failed(err)
	}
	col, _, err := df.Column(p.YCol)
	if err != nil {
		return failed(err)
	}
	if !col.Type.IsNumeric() {
		return failed(fmt.Errorf("%w: %q has dtype %s", dataset.ErrNotNumeric, p.YCol, col.Type))
	}
	y, err := df.Values(p.YCol)
	if err != nil {
		return failed(err)
	}
	return Result{Chart: chart.Bar(x, y, p.XCol, p.YCol, p.Title)}
}

// CreateHistogram counts the values of col.
func CreateHistogram(df *dataset.Frame, p HistogramParams) Result {
	if df == nil {
		return failed(fmt.Errorf("no dataset loaded"))
	}
	x, err := df.Values(p.Col)
	if err != nil {
		return failed(err)
	}
	return Result{Chart: chart.Histogram(x, p.Col, p.Title)}
}
