package nodes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
)

func fig(title string) *chart.Figure {
	return chart.Bar([]any{"a"}, []any{1.0}, "x", "y", title)
}

func TestBuildEnvelopeFigure(t *testing.T) {
	f := fig("Sales")
	env := BuildEnvelope(f)
	assert.Same(t, f, env.PlotlyFig)
	assert.Equal(t, TextChart, env.ResponseText)
	assert.Nil(t, env.PlotlyDashboard)
	assert.Nil(t, env.DataFrame)
}

func TestBuildEnvelopeToolResultKey(t *testing.T) {
	f := fig("Sales")
	env := BuildEnvelope(sandbox.Mapping{{Key: ToolResultKey, Value: f}})
	assert.Same(t, f, env.PlotlyFig)
	assert.Equal(t, TextChart, env.ResponseText)
	assert.Nil(t, env.PlotlyDashboard)
}

func TestBuildEnvelopeDashboardMappingPreservesOrder(t *testing.T) {
	a, b, c := fig("A"), fig("B"), fig("C")
	env := BuildEnvelope(sandbox.Mapping{
		{Key: "distribution_chart", Value: a},
		{Key: "category_count_chart", Value: b},
		{Key: "correlation_chart", Value: c},
	})
	require.Len(t, env.PlotlyDashboard, 3)
	assert.Same(t, a, env.PlotlyDashboard[0])
	assert.Same(t, b, env.PlotlyDashboard[1])
	assert.Same(t, c, env.PlotlyDashboard[2])
	assert.Equal(t, TextDashboard, env.ResponseText)
	assert.NotContains(t, env.ResponseText, "Additional Analysis")
}

func TestBuildEnvelopeDashboardWithAdditionalAnalysis(t *testing.T) {
	env := BuildEnvelope(sandbox.Mapping{
		{Key: "sales_chart", Value: fig("A")},
		{Key: "average_sales_by_region", Value: 12.5, Repr: "12.5"},
		{Key: "top_region", Value: "North"},
	})
	require.Len(t, env.PlotlyDashboard, 1)
	want := TextDashboard +
		"\n\n**Additional Analysis:**\n" +
		"\n**Average Sales By Region**\n```\n12.5\n```\n" +
		"\n**Top Region**\n```\nNorth\n```\n"
	assert.Equal(t, want, env.ResponseText)
}

func TestBuildEnvelopeChartlessMapping(t *testing.T) {
	env := BuildEnvelope(sandbox.Mapping{{Key: "error", Value: "column not found"}})
	assert.Nil(t, env.PlotlyDashboard)
	assert.Nil(t, env.PlotlyFig)
	assert.Equal(t, "Here is the analysis result:\n```\n{\n  \"error\": \"column not found\"\n}\n```", env.ResponseText)
}

func TestBuildEnvelopeSequence(t *testing.T) {
	env := BuildEnvelope(sandbox.Sequence{fig("A"), fig("B")})
	assert.Len(t, env.PlotlyDashboard, 2)
	assert.Equal(t, TextSequence, env.ResponseText)

	env = BuildEnvelope(sandbox.Sequence{1.0, "x"})
	assert.Nil(t, env.PlotlyDashboard)
	assert.Equal(t, `[1,"x"]`, env.ResponseText)
}

func TestBuildEnvelopeEmptySequence(t *testing.T) {
	env := BuildEnvelope(sandbox.Sequence{})
	assert.Equal(t, TextNothing, env.ResponseText)
	assert.Nil(t, env.PlotlyDashboard)

	var none sandbox.Sequence
	assert.Equal(t, TextNothing, BuildEnvelope(none).ResponseText)
}

func TestBuildEnvelopeTableScalarsAndNothing(t *testing.T) {
	df, err := dataset.Load("r.csv", strings.NewReader("region,total\nNorth,10\n"))
	require.NoError(t, err)

	env := BuildEnvelope(df)
	assert.Same(t, df, env.DataFrame)
	assert.Equal(t, TextTable, env.ResponseText)
	assert.Nil(t, env.PlotlyFig)

	assert.Equal(t, "35", BuildEnvelope(35.0).ResponseText)
	assert.Equal(t, "12.75", BuildEnvelope(12.75).ResponseText)
	assert.Equal(t, "True", BuildEnvelope(true).ResponseText)
	assert.Equal(t, "The mean is 3", BuildEnvelope("The mean is 3").ResponseText)

	assert.Equal(t, TextNothing, BuildEnvelope(nil).ResponseText)
	assert.Equal(t, TextNothing, BuildEnvelope("  ").ResponseText)
	var nilFig *chart.Figure
	assert.Equal(t, TextNothing, BuildEnvelope(nilFig).ResponseText)
}

func TestTitleCaseKey(t *testing.T) {
	assert.Equal(t, "Average Sales By Region", TitleCaseKey("average_sales_by_region"))
	assert.Equal(t, "Top 5Products", TitleCaseKey("top_5products"))
	assert.Equal(t, "Mean", TitleCaseKey("MEAN"))
}
