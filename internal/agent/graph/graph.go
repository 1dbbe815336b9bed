package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/datasense-ai/server/internal/agent/graph/nodes"
	"github.com/datasense-ai/server/internal/agent/graph/observers"
	"github.com/datasense-ai/server/internal/agent/graph/tools"
	"github.com/datasense-ai/server/internal/agent/llm"
	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// DefaultMaxSteps bounds one graph walk independently of the retry ceiling.
const DefaultMaxSteps = 15

// Texts returned by Invoke when the walk ends without a response.
const (
	TextRetriesExhausted = "I'm sorry, I was unable to complete your request. The final error was:\n\n`%s`"
	TextStepLimit        = "A system error occurred: the analysis exceeded its step limit and was stopped."
	TextUnexpected       = "An unexpected system error occurred: %v"
	TextFallback         = "Sorry, I couldn't process your request."
)

// Config holds everything needed to build a runner for one dataset.
type Config struct {
	LLM     llm.Client
	Sandbox sandbox.Evaluator
	Agent   model.AgentConfig
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Nodes    *nodes.Nodes
	MaxSteps int
}

// GraphBuilder handles the construction of the analysis graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.AgentState, *model.AgentState]
}

// Runner executes the compiled graph against the dataset and summary bound at construction.
type Runner struct {
	runnable compose.Runnable[*model.AgentState, *model.AgentState]
	frame    *dataset.Frame
	summary  string
}

// NewRunner builds the graph for frame and binds frame and summary to every invocation.
func NewRunner(ctx context.Context, cfg Config, frame *dataset.Frame, summary string) (*Runner, error) {
	if frame == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	n, err := nodes.New(nodes.Deps{
		LLM:          cfg.LLM,
		Tools:        tools.NewRegistry(frame),
		Sandbox:      cfg.Sandbox,
		MaxRetries:   cfg.Agent.MaxRetries,
		MaxFollowUps: cfg.Agent.MaxFollowUps,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{Nodes: n, MaxSteps: cfg.Agent.MaxSteps})
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("dataset", frame.Name).Msg("Analysis graph built successfully")
	return &Runner{runnable: runnable, frame: frame, summary: summary}, nil
}

// Run walks the graph once. The returned state is never nil, even when the
// walk fails part way, so callers can inspect how far it got.
func (r *Runner) Run(ctx context.Context, prompt string) (*model.AgentState, error) {
	state := &model.AgentState{
		InvocationID: uuid.NewString(),
		UserPrompt:   prompt,
		DataSummary:  r.summary,
		Frame:        r.frame,
	}
	logx.Info().Str("invocation_id", state.InvocationID).Str("prompt", prompt).Msg("Analysis started")

	out, err := r.runnable.Invoke(ctx, state, compose.WithCallbacks(observers.NewAllCallbacks()))
	if out != nil {
		state = out
	}
	logx.Info().
		Str("invocation_id", state.InvocationID).
		Strs("path", state.Path).
		Str("last_node", state.LastNode()).
		Int("retries", state.Retries).
		Int("steps", state.Stats.Steps).
		Int("model_calls", state.Stats.ModelCalls).
		Int("prompt_tokens", state.Stats.PromptTokens).
		Int("completion_tokens", state.Stats.CompletionTokens).
		Float64("total_cost_usd", state.Stats.TotalCostUSD).
		Bool("responded", state.FinalResponse != nil).
		Str("error", state.Error).
		Msg("Analysis finished")
	return state, err
}

// Invoke runs one analysis and always returns an envelope. Retry exhaustion,
// the step limit and unexpected failures each map to their own text.
func (r *Runner) Invoke(ctx context.Context, prompt string) (env model.Envelope) {
	defer func() {
		if p := recover(); p != nil {
			logx.Error().Interface("panic", p).Msg("Analysis panicked")
			env = model.Envelope{ResponseText: fmt.Sprintf(TextUnexpected, p)}
		}
	}()

	state, err := r.Run(ctx, prompt)
	switch {
	case err != nil && IsStepLimit(err):
		logx.Error().Err(err).Str("invocation_id", state.InvocationID).Msg("Step limit exceeded")
		return model.Envelope{ResponseText: TextStepLimit}
	case err != nil:
		logx.Error().Err(err).Str("invocation_id", state.InvocationID).Msg("Analysis failed")
		return model.Envelope{ResponseText: fmt.Sprintf(TextUnexpected, err)}
	case state.FinalResponse != nil:
		return *state.FinalResponse
	case state.HasError():
		return model.Envelope{ResponseText: fmt.Sprintf(TextRetriesExhausted, state.Error)}
	default:
		return model.Envelope{ResponseText: TextFallback}
	}
}

// IsStepLimit reports whether err is the graph's step ceiling being hit.
func IsStepLimit(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, compose.ErrExceedMaxSteps) || strings.Contains(err.Error(), "exceeds max steps")
}

// RecordUsage is an llm.UsageHook that adds usage to the graph-local stats of
// the invocation in ctx. Calls made outside a graph run are ignored.
func RecordUsage(ctx context.Context, modelName string, usage *schema.TokenUsage) {
	_ = compose.ProcessState[*model.RunStats](ctx, func(_ context.Context, st *model.RunStats) error {
		st.AddUsage(modelName, usage)
		return nil
	})
}

// NewLLMClient builds the Gemini-backed client with usage recorded into run stats.
func NewLLMClient(ctx context.Context, cfg nodes.ChatModelConfig) (*llm.EinoClient, error) {
	chat, err := nodes.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewEinoClient(chat, cfg.Model.Model, llm.WithUsageHook(RecordUsage))
}

// BuildGraph constructs and returns the compiled analysis graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.AgentState, *model.AgentState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Nodes == nil {
		return nil, fmt.Errorf("nodes are not initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.AgentState, *model.AgentState](
			compose.WithGenLocalState(func(ctx context.Context) *model.RunStats {
				return &model.RunStats{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	n := b.config.Nodes
	steps := []struct {
		key string
		fn  func(context.Context, *model.AgentState) (*model.AgentState, error)
	}{
		{nodes.NodeIntentRouter, n.IntentRouter},
		{nodes.NodeParameterExtractor, n.ParameterExtractor},
		{nodes.NodeToolExecutor, n.ToolExecutor},
		{nodes.NodeCodeGenerator, n.CodeGenerator},
		{nodes.NodeCodeExecutor, n.CodeExecutor},
		{nodes.NodeReplan, n.Replan},
		{nodes.NodeResponseGenerator, n.ResponseGenerator},
	}
	for _, s := range steps {
		if err := b.graph.AddLambdaNode(s.key,
			compose.InvokableLambda(s.fn),
			compose.WithNodeName(s.key),
			compose.WithStatePreHandler(nodes.NewPreHandler(s.key)),
			compose.WithStatePostHandler(nodes.NewPostHandler()),
		); err != nil {
			logx.Error().Err(err).Str("node", s.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.key, err)
		}
	}
	return nil
}

// addEdges creates the unconditional connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeIntentRouter},
		{nodes.NodeToolExecutor, nodes.NodeResponseGenerator},
		{nodes.NodeCodeGenerator, nodes.NodeCodeExecutor},
		{nodes.NodeReplan, nodes.NodeCodeGenerator},
		{nodes.NodeResponseGenerator, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	routerBranch := compose.NewGraphBranch(
		nodes.NewRouterCondition(),
		map[string]bool{
			nodes.NodeParameterExtractor: true,
			nodes.NodeCodeGenerator:      true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentRouter, routerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding router branch")
		return fmt.Errorf("error adding router branch: %w", err)
	}

	paramsBranch := compose.NewGraphBranch(
		nodes.NewParamsCondition(),
		map[string]bool{
			nodes.NodeToolExecutor:  true,
			nodes.NodeCodeGenerator: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeParameterExtractor, paramsBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding parameter branch")
		return fmt.Errorf("error adding parameter branch: %w", err)
	}

	executionBranch := compose.NewGraphBranch(
		nodes.NewExecutionCondition(b.config.Nodes.MaxRetries()),
		map[string]bool{
			nodes.NodeReplan:            true,
			nodes.NodeResponseGenerator: true,
			compose.END:                 true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeCodeExecutor, executionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding execution branch")
		return fmt.Errorf("error adding execution branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.AgentState, *model.AgentState], error) {
	maxSteps := b.config.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("analysis"),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Int("max_steps", maxSteps).Msg("Graph compiled successfully")
	return runnable, nil
}
