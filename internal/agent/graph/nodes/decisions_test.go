package nodes

import (
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/stretchr/testify/assert"

	"github.com/datasense-ai/server/internal/agent/model"
)

func TestDecideAfterRouter(t *testing.T) {
	for _, in := range []model.Intent{model.IntentBarChart, model.IntentHistogram} {
		assert.Equal(t, NodeParameterExtractor, DecideAfterRouter(&model.AgentState{Intent: in}))
	}
	for _, in := range []model.Intent{model.IntentDashboard, model.IntentCodeGenerator} {
		assert.Equal(t, NodeCodeGenerator, DecideAfterRouter(&model.AgentState{Intent: in}))
	}
}

func TestDecideAfterParams(t *testing.T) {
	assert.Equal(t, NodeToolExecutor, DecideAfterParams(&model.AgentState{}))
	assert.Equal(t, NodeCodeGenerator, DecideAfterParams(&model.AgentState{Error: "parameter extraction failed: x"}))
}

func TestDecideAfterExecution(t *testing.T) {
	cases := []struct {
		name    string
		err     string
		retries int
		want    string
	}{
		{"success", "", 1, NodeResponseGenerator},
		{"success after retries", "", 2, NodeResponseGenerator},
		{"first failure", "code execution failed: KeyError", 1, NodeReplan},
		{"exhausted", "code execution failed: KeyError", 2, compose.END},
		{"beyond ceiling", "no code generated", 3, compose.END},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := &model.AgentState{Error: c.err, Retries: c.retries}
			assert.Equal(t, c.want, DecideAfterExecution(s, 2))
		})
	}
}

func TestDecideAfterExecutionNormalisesCeiling(t *testing.T) {
	s := &model.AgentState{Error: "x", Retries: 1}
	assert.Equal(t, NodeReplan, DecideAfterExecution(s, 0))
	s.Retries = 2
	assert.Equal(t, compose.END, DecideAfterExecution(s, 0))
}
