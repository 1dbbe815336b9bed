package nodes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
)

// Acknowledgement texts
const (
	TextChart            = "Here is the chart you requested."
	TextDashboard        = "Here is the dashboard you requested."
	TextSequence         = "I have generated the dashboard for you."
	TextTable            = "Here is the resulting data."
	TextNothing          = "I have processed your request, but there was no specific output to display."
	textAnalysisResult   = "Here is the analysis result:\n```\n%s\n```"
	textAdditionalHeader = "\n\n**Additional Analysis:**\n"

	// ToolResultKey is the key chart tools store their figure under.
	ToolResultKey = "plotly_fig"
)

// BuildEnvelope shapes an execution result into the response envelope.
// Follow-up questions are added separately.
func BuildEnvelope(result any) model.Envelope {
	switch v := result.(type) {
	case nil:
		return model.Envelope{ResponseText: TextNothing}
	case sandbox.Sequence:
		if len(v) == 0 {
			return model.Envelope{ResponseText: TextNothing}
		}
		if figs, ok := v.AllFigures(); ok {
			return model.Envelope{PlotlyDashboard: figs, ResponseText: TextSequence}
		}
	case sandbox.Mapping:
		return mappingEnvelope(v)
	case *chart.Figure:
		if v != nil {
			return model.Envelope{PlotlyFig: v, ResponseText: TextChart}
		}
		return model.Envelope{ResponseText: TextNothing}
	case *dataset.Frame:
		if v != nil {
			return model.Envelope{DataFrame: v, ResponseText: TextTable}
		}
		return model.Envelope{ResponseText: TextNothing}
	}

	text := stringify(result)
	if text == "" {
		return model.Envelope{ResponseText: TextNothing}
	}
	return model.Envelope{ResponseText: text}
}

func mappingEnvelope(m sandbox.Mapping) model.Envelope {
	if len(m) == 1 {
		if v, ok := m.Get(ToolResultKey); ok {
			if fig, ok := v.(*chart.Figure); ok && fig != nil {
				return model.Envelope{PlotlyFig: fig, ResponseText: TextChart}
			}
		}
	}

	figs := m.Figures()
	if len(figs) == 0 {
		body, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			body = []byte(stringify(m))
		}
		return model.Envelope{ResponseText: fmt.Sprintf(textAnalysisResult, body)}
	}

	var b strings.Builder
	b.WriteString(TextDashboard)
	header := false
	for _, e := range m {
		if _, isFig := e.Value.(*chart.Figure); isFig {
			continue
		}
		if !header {
			b.WriteString(textAdditionalHeader)
			header = true
		}
		val := e.Repr
		if val == "" {
			val = stringify(e.Value)
		}
		fmt.Fprintf(&b, "\n**%s**\n```\n%s\n```\n", TitleCaseKey(e.Key), val)
	}
	return model.Envelope{PlotlyDashboard: figs, ResponseText: b.String()}
}

// TitleCaseKey turns a snake_case key into a Title Case label.
func TitleCaseKey(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	var b strings.Builder
	prevLetter := false
	for _, r := range key {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
