package model

import (
	"strings"

	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
)

// Intent is the classified category of a request; it selects the path.
type Intent string

const (
	IntentBarChart      Intent = "bar_chart"
	IntentHistogram     Intent = "histogram"
	IntentDashboard     Intent = "dashboard"
	IntentCodeGenerator Intent = "code_generator"
)

// Intents lists every intent the router may emit.
var Intents = []Intent{IntentBarChart, IntentHistogram, IntentDashboard, IntentCodeGenerator}

// ParseIntent normalises model output into a known intent.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'`)
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return IntentCodeGenerator, false
}

// UsesTool reports whether the intent is served by a structured chart tool.
func (i Intent) UsesTool() bool {
	return i == IntentBarChart || i == IntentHistogram
}

// AgentState is threaded through every node of one invocation.
// It is created fresh per Invoke and discarded afterwards; Frame is shared
// with the session and must never be mutated by a node.
type AgentState struct {
	InvocationID string

	UserPrompt  string         // may be overwritten by the re-planner
	DataSummary string         // fixed for the invocation
	Frame       *dataset.Frame // read-only

	Intent     Intent
	ToolParams map[string]any // tool path only
	CodeString string         // code path only

	// ExecutionResult is a *chart.Figure, sandbox.Mapping, sandbox.Sequence,
	// *dataset.Frame, a scalar, or nil.
	ExecutionResult any

	FinalResponse *Envelope // set once, by the responder
	Error         string    // empty when no error
	Retries       int       // code generations so far

	// Path records node keys in visit order.
	Path []string
	// Stats mirrors the graph-local RunStats after every node.
	Stats RunStats
}

// HasError reports whether a node left an unresolved failure.
func (s *AgentState) HasError() bool {
	return s.Error != ""
}

// LastNode returns the most recently entered node key.
func (s *AgentState) LastNode() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[len(s.Path)-1]
}

// Envelope is the structured response returned to the caller. Only the keys
// relevant to the produced result are set.
type Envelope struct {
	ResponseText      string          `json:"response_text,omitempty"`
	PlotlyFig         *chart.Figure   `json:"plotly_fig,omitempty"`
	PlotlyDashboard   []*chart.Figure `json:"plotly_dashboard,omitempty"`
	DataFrame         *dataset.Frame  `json:"dataframe,omitempty"`
	FollowUpQuestions []string        `json:"follow_up_questions,omitempty"`
}

// RunStats is per-invocation local graph state; eino serialises access to it
// inside state handlers and compose.ProcessState.
type RunStats struct {
	InvocationID     string
	Steps            int
	ModelCalls       int
	PromptTokens     int
	CompletionTokens int
	TotalCostUSD     float64
}
