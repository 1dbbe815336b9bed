package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/datasense-ai/server/internal/agent/graph/parsers"
	agentmodel "github.com/datasense-ai/server/internal/agent/model"
	errx "github.com/datasense-ai/server/internal/core/error"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// UsageHook receives token usage after every successful model call.
type UsageHook func(ctx context.Context, modelName string, usage *schema.TokenUsage)

// EinoClient implements Client over an eino tool-calling chat model.
type EinoClient struct {
	chat      model.ToolCallingChatModel
	modelName string
	onUsage   UsageHook
}

// Option configures an EinoClient.
type Option func(*EinoClient)

// WithUsageHook registers a callback for per-call token usage.
func WithUsageHook(h UsageHook) Option {
	return func(c *EinoClient) { c.onUsage = h }
}

// NewEinoClient wraps chat; modelName is used for pricing and logs.
func NewEinoClient(chat model.ToolCallingChatModel, modelName string, opts ...Option) (*EinoClient, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	c := &EinoClient{chat: chat, modelName: modelName}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *EinoClient) generate(ctx context.Context, chat model.BaseChatModel, prompt, mode string) (*schema.Message, error) {
	out, err := chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Error().Err(err).Str("mode", mode).Str("model", c.modelName).Msg("Model call failed")
		return nil, errx.WrapModel(err)
	}
	if out == nil {
		return nil, errx.WrapModel(fmt.Errorf("empty response"))
	}
	c.recordUsage(ctx, out, mode)
	return out, nil
}

func (c *EinoClient) recordUsage(ctx context.Context, out *schema.Message, mode string) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := agentmodel.ComputeCost(usage, agentmodel.ResolvePricing(c.modelName))
	logx.Debug().
		Str("mode", mode).
		Str("model", c.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
	if c.onUsage != nil {
		c.onUsage(ctx, c.modelName, usage)
	}
}

// Complete implements Client.
func (c *EinoClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.generate(ctx, c.chat, prompt, "complete")
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// Structured implements Client.
func (c *EinoClient) Structured(ctx context.Context, prompt string, s Schema) (map[string]any, error) {
	out, err := c.generate(ctx, c.chat, prompt+s.Instruction(), "structured")
	if err != nil {
		return nil, err
	}
	obj, err := parsers.ParseJSONObject(out.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := s.Validate(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ToolCall implements Client. The tool is bound on a copy of the model so
// concurrent invocations never share bindings.
func (c *EinoClient) ToolCall(ctx context.Context, prompt string, tool *schema.ToolInfo) (map[string]any, error) {
	if tool == nil {
		return nil, fmt.Errorf("tool is nil")
	}
	bound, err := c.chat.WithTools([]*schema.ToolInfo{tool})
	if err != nil {
		return nil, fmt.Errorf("bind tool %s: %w", tool.Name, err)
	}
	out, err := c.generate(ctx, bound, prompt, "tool_call")
	if err != nil {
		return nil, err
	}
	for _, call := range out.ToolCalls {
		if call.Function.Name != tool.Name {
			logx.Warn().Str("tool_name", call.Function.Name).Str("expected", tool.Name).Msg("Ignoring unknown tool call")
			continue
		}
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: %s arguments: %v", ErrMalformedOutput, tool.Name, err)
			}
		}
		return args, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoToolCall, tool.Name)
}

var _ Client = (*EinoClient)(nil)
