// Package chart holds the chart value exchanged between the chart tools,
// the sandbox and the response envelope. Figures serialise to the Plotly
// figure JSON schema so any Plotly renderer can draw them unchanged.
package chart

import "encoding/json"

// DefaultTemplate is the layout template applied to figures built in Go.
const DefaultTemplate = "plotly_white"

// Trace is a single Plotly trace ("bar", "histogram", "scatter", ...).
type Trace map[string]any

// Type returns the trace type, defaulting to scatter like Plotly does.
func (t Trace) Type() string {
	if s, ok := t["type"].(string); ok && s != "" {
		return s
	}
	return "scatter"
}

// Figure is a Plotly figure: traces plus layout.
type Figure struct {
	Data   []Trace        `json:"data"`
	Layout map[string]any `json:"layout,omitempty"`
}

// Title returns the layout title text if present.
func (f *Figure) Title() string {
	if f == nil || f.Layout == nil {
		return ""
	}
	switch t := f.Layout["title"].(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s
		}
	}
	return ""
}

// JSON returns the Plotly JSON document.
func (f *Figure) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// Parse decodes a Plotly figure JSON document. It reports false when the
// document has no "data" array, which is how non-figure objects are told apart.
func Parse(raw json.RawMessage) (*Figure, bool) {
	var probe struct {
		Data   []Trace        `json:"data"`
		Layout map[string]any `json:"layout"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Data == nil {
		return nil, false
	}
	return &Figure{Data: probe.Data, Layout: probe.Layout}, true
}

func layout(title string, axes map[string]any) map[string]any {
	l := map[string]any{
		"template": DefaultTemplate,
		"title":    map[string]any{"text": title},
	}
	for k, v := range axes {
		l[k] = v
	}
	return l
}

// Bar builds a bar chart with one bar per (x, y) pair.
func Bar(x, y []any, xLabel, yLabel, title string) *Figure {
	return &Figure{
		Data: []Trace{{
			"type":        "bar",
			"x":           x,
			"y":           y,
			"name":        yLabel,
			"orientation": "v",
		}},
		Layout: layout(title, map[string]any{
			"xaxis":   map[string]any{"title": map[string]any{"text": xLabel}},
			"yaxis":   map[string]any{"title": map[string]any{"text": yLabel}},
			"barmode": "relative",
		}),
	}
}

// Histogram builds a count histogram over x.
func Histogram(x []any, label, title string) *Figure {
	return &Figure{
		Data: []Trace{{
			"type": "histogram",
			"x":    x,
			"name": label,
		}},
		Layout: layout(title, map[string]any{
			"xaxis":   map[string]any{"title": map[string]any{"text": label}},
			"yaxis":   map[string]any{"title": map[string]any{"text": "count"}},
			"barmode": "relative",
		}),
	}
}
