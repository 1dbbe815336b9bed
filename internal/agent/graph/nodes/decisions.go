package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/datasense-ai/server/internal/agent/model"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// DecideAfterRouter sends chart intents to parameter extraction and
// everything else to code generation.
func DecideAfterRouter(s *model.AgentState) string {
	if s.Intent.UsesTool() {
		return NodeParameterExtractor
	}
	return NodeCodeGenerator
}

// DecideAfterParams falls back to code generation when extraction failed.
func DecideAfterParams(s *model.AgentState) string {
	if s.HasError() {
		return NodeCodeGenerator
	}
	return NodeToolExecutor
}

// DecideAfterExecution re-plans while retries remain, ends the walk without a
// response once they are spent, and otherwise moves on to the responder.
func DecideAfterExecution(s *model.AgentState, maxRetries int) string {
	if !s.HasError() {
		return NodeResponseGenerator
	}
	if s.Retries < normalizeMaxRetries(maxRetries) {
		return NodeReplan
	}
	return compose.END
}

func NewRouterCondition() func(context.Context, *model.AgentState) (string, error) {
	return func(ctx context.Context, s *model.AgentState) (string, error) {
		next := DecideAfterRouter(s)
		logx.Debug().Str("invocation_id", s.InvocationID).Str("intent", string(s.Intent)).Str("next", next).Msg("Routing after intent")
		return next, nil
	}
}

func NewParamsCondition() func(context.Context, *model.AgentState) (string, error) {
	return func(ctx context.Context, s *model.AgentState) (string, error) {
		next := DecideAfterParams(s)
		logx.Debug().Str("invocation_id", s.InvocationID).Str("next", next).Msg("Routing after parameter extraction")
		return next, nil
	}
}

func NewExecutionCondition(maxRetries int) func(context.Context, *model.AgentState) (string, error) {
	return func(ctx context.Context, s *model.AgentState) (string, error) {
		next := DecideAfterExecution(s, maxRetries)
		if next == compose.END {
			logx.Warn().
				Str("invocation_id", s.InvocationID).
				Int("retries", s.Retries).
				Str("error", s.Error).
				Msg("Retries exhausted - ending without response")
		} else {
			logx.Debug().Str("invocation_id", s.InvocationID).Int("retries", s.Retries).Str("next", next).Msg("Routing after execution")
		}
		return next, nil
	}
}
