// Package llmtest provides scripted language-model fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/datasense-ai/server/internal/agent/llm"
)

// ErrNotScripted is returned by a fake asked for a call it was not given.
var ErrNotScripted = errors.New("llmtest: call not scripted")

// Call records one request made to a fake Client.
type Call struct {
	Mode   string
	Prompt string
	Schema string
	Tool   string
}

// Client is a function-backed llm.Client. Unset functions fail with ErrNotScripted.
type Client struct {
	CompleteFn   func(ctx context.Context, prompt string) (string, error)
	StructuredFn func(ctx context.Context, prompt string, s llm.Schema) (map[string]any, error)
	ToolCallFn   func(ctx context.Context, prompt string, tool *schema.ToolInfo) (map[string]any, error)

	mu    sync.Mutex
	calls []Call
}

func (c *Client) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

// Calls returns a copy of the recorded calls in order.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsOf returns the recorded calls of one mode.
func (c *Client) CallsOf(mode string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Mode == mode {
			out = append(out, call)
		}
	}
	return out
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	c.record(Call{Mode: "complete", Prompt: prompt})
	if c.CompleteFn == nil {
		return "", ErrNotScripted
	}
	return c.CompleteFn(ctx, prompt)
}

func (c *Client) Structured(ctx context.Context, prompt string, s llm.Schema) (map[string]any, error) {
	c.record(Call{Mode: "structured", Prompt: prompt, Schema: s.Name})
	if c.StructuredFn == nil {
		return nil, ErrNotScripted
	}
	return c.StructuredFn(ctx, prompt, s)
}

func (c *Client) ToolCall(ctx context.Context, prompt string, tool *schema.ToolInfo) (map[string]any, error) {
	name := ""
	if tool != nil {
		name = tool.Name
	}
	c.record(Call{Mode: "tool_call", Prompt: prompt, Tool: name})
	if c.ToolCallFn == nil {
		return nil, ErrNotScripted
	}
	return c.ToolCallFn(ctx, prompt, tool)
}

var _ llm.Client = (*Client)(nil)

// Reply is one scripted chat model response.
type Reply struct {
	Message *schema.Message
	Err     error
}

// ChatModel replays queued replies in order and records every request.
type ChatModel struct {
	mu      sync.Mutex
	replies []Reply
	inputs  [][]*schema.Message
	tools   [][]*schema.ToolInfo
	bound   []*schema.ToolInfo
	parent  *ChatModel
}

// NewChatModel returns a fake that answers with replies in order.
func NewChatModel(replies ...Reply) *ChatModel {
	return &ChatModel{replies: replies}
}

func (m *ChatModel) root() *ChatModel {
	if m.parent != nil {
		return m.parent
	}
	return m
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	r.tools = append(r.tools, m.bound)
	if len(r.replies) == 0 {
		return nil, ErrNotScripted
	}
	next := r.replies[0]
	r.replies = r.replies[1:]
	return next.Message, next.Err
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools returns a child bound to tools; the receiver is left unbound.
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &ChatModel{parent: m.root(), bound: tools}, nil
}

// Inputs returns the messages of every Generate call.
func (m *ChatModel) Inputs() [][]*schema.Message {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]*schema.Message(nil), r.inputs...)
}

// BoundTools returns the tools bound at each Generate call.
func (m *ChatModel) BoundTools() [][]*schema.ToolInfo {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]*schema.ToolInfo(nil), r.tools...)
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)
