package nodes

import (
	"github.com/datasense-ai/server/internal/agent/graph/prompts"
	"github.com/datasense-ai/server/internal/agent/model"
)

const (
	DefaultMaxRetries   = 2
	DefaultMaxFollowUps = 3
)

// ===== Small helpers to keep handlers simple/readable =====
// normalizeMaxRetries returns a sane default when the provided value is invalid.
func normalizeMaxRetries(n int) int {
	if n <= 0 {
		return DefaultMaxRetries
	}
	return n
}

func normalizeMaxFollowUps(n int) int {
	if n <= 0 || n > DefaultMaxFollowUps {
		return DefaultMaxFollowUps
	}
	return n
}

// promptVars copies the prompt-visible fields of the state.
func promptVars(s *model.AgentState) prompts.Vars {
	return prompts.Vars{
		DataSummary: s.DataSummary,
		UserPrompt:  s.UserPrompt,
		Intent:      s.Intent,
		Error:       s.Error,
	}
}

func stringArg(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
