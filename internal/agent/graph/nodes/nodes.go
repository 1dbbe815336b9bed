package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/datasense-ai/server/internal/agent/graph/parsers"
	"github.com/datasense-ai/server/internal/agent/graph/prompts"
	"github.com/datasense-ai/server/internal/agent/graph/tools"
	"github.com/datasense-ai/server/internal/agent/llm"
	"github.com/datasense-ai/server/internal/agent/model"
	errx "github.com/datasense-ai/server/internal/core/error"
	"github.com/datasense-ai/server/internal/sandbox"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// Node keys
const (
	NodeIntentRouter       = "intent_router"
	NodeParameterExtractor = "parameter_extractor"
	NodeToolExecutor       = "tool_executor"
	NodeCodeGenerator      = "code_generator"
	NodeCodeExecutor       = "code_executor"
	NodeReplan             = "replan"
	NodeResponseGenerator  = "response_generator"
)

// Error texts written into AgentState.Error.
const (
	ErrNoCodeGenerated = "no code generated"
	ErrReplanFailed    = "failed to create a new plan"
)

var RouterSchema = llm.Schema{
	Name: "IntentRouter",
	Fields: []llm.Field{
		{Name: "intent", Type: llm.FieldString, Desc: "one of bar_chart, histogram, dashboard, code_generator"},
	},
}

var ReplanSchema = llm.Schema{
	Name: "Replan",
	Fields: []llm.Field{
		{Name: "intent", Type: llm.FieldString, Desc: "the new intent, dashboard or code_generator"},
		{Name: "user_prompt", Type: llm.FieldString, Desc: "a simplified instruction likely to succeed"},
	},
}

// Deps are the collaborators shared by all nodes of one runner.
type Deps struct {
	LLM          llm.Client
	Tools        *tools.Registry
	Sandbox      sandbox.Evaluator
	MaxRetries   int
	MaxFollowUps int
}

// Nodes implements every step of the analysis graph over Deps.
type Nodes struct {
	deps Deps
}

func New(deps Deps) (*Nodes, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("llm client is nil")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if deps.Sandbox == nil {
		return nil, fmt.Errorf("sandbox evaluator is nil")
	}
	deps.MaxRetries = normalizeMaxRetries(deps.MaxRetries)
	deps.MaxFollowUps = normalizeMaxFollowUps(deps.MaxFollowUps)
	return &Nodes{deps: deps}, nil
}

// MaxRetries is the normalised regeneration ceiling.
func (n *Nodes) MaxRetries() int {
	return n.deps.MaxRetries
}

// ===== Handlers =====

// NewPreHandler records the visit in both the state path and the graph-local stats.
func NewPreHandler(node string) func(context.Context, *model.AgentState, *model.RunStats) (*model.AgentState, error) {
	return func(ctx context.Context, in *model.AgentState, st *model.RunStats) (*model.AgentState, error) {
		if st.InvocationID == "" {
			st.InvocationID = in.InvocationID
		}
		st.Steps++
		in.Path = append(in.Path, node)
		return in, nil
	}
}

// NewPostHandler copies the running totals onto the state so they survive the walk.
func NewPostHandler() func(context.Context, *model.AgentState, *model.RunStats) (*model.AgentState, error) {
	return func(ctx context.Context, out *model.AgentState, st *model.RunStats) (*model.AgentState, error) {
		if out != nil {
			out.Stats = *st
		}
		return out, nil
	}
}

// ===== Intent Router =====

func (n *Nodes) IntentRouter(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	s.Intent = n.route(ctx, s)
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeIntentRouter).
		Str("intent", string(s.Intent)).
		Msg("Intent classified")
	return s, nil
}

func (n *Nodes) route(ctx context.Context, s *model.AgentState) model.Intent {
	prompt, err := prompts.RenderRouter(ctx, promptVars(s))
	if err != nil {
		logx.Warn().Err(err).Str("invocation_id", s.InvocationID).Msg("Router prompt failed; defaulting to code_generator")
		return model.IntentCodeGenerator
	}
	obj, err := n.deps.LLM.Structured(ctx, prompt, RouterSchema)
	if err != nil {
		logx.Warn().Err(err).Str("invocation_id", s.InvocationID).Msg("Router call failed; defaulting to code_generator")
		return model.IntentCodeGenerator
	}
	intent, ok := model.ParseIntent(stringArg(obj, "intent"))
	if !ok {
		logx.Warn().Str("invocation_id", s.InvocationID).Str("raw_intent", stringArg(obj, "intent")).
			Msg("Unknown intent; defaulting to code_generator")
	}
	return intent
}

// ===== Parameter Extractor =====

func (n *Nodes) ParameterExtractor(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	params, err := n.extract(ctx, s)
	if err != nil {
		s.Error = "parameter extraction failed: " + err.Error()
		logx.Debug().
			Str("invocation_id", s.InvocationID).
			Str("node", NodeParameterExtractor).
			Str("error", s.Error).
			Msg("Falling back to code generation")
		return s, nil
	}
	s.ToolParams = params
	s.Error = ""
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeParameterExtractor).
		Interface("tool_params", params).
		Msg("Parameters extracted")
	return s, nil
}

func (n *Nodes) extract(ctx context.Context, s *model.AgentState) (map[string]any, error) {
	info, ok := n.deps.Tools.Info(s.Intent)
	if !ok {
		return nil, fmt.Errorf("no parameter schema for intent %q", s.Intent)
	}
	vars := promptVars(s)
	vars.Tool = info.Name
	prompt, err := prompts.RenderExtractor(ctx, vars)
	if err != nil {
		return nil, err
	}
	args, err := n.deps.LLM.ToolCall(ctx, prompt, info)
	if err != nil {
		return nil, err
	}
	if err := n.deps.Tools.Validate(s.Intent, args); err != nil {
		return nil, err
	}
	return args, nil
}

// ===== Tool Executor =====

// ToolExecutor runs the chart tool for the intent. A tool failure is
// surfaced in Error and as an {"error": ...} result; this path never re-plans.
func (n *Nodes) ToolExecutor(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	res, err := n.deps.Tools.Invoke(ctx, s.Intent, s.ToolParams)
	msg := res.Error
	if err != nil {
		msg = err.Error()
	}
	if msg != "" {
		s.Error = "tool execution failed: " + msg
		s.ExecutionResult = sandbox.Mapping{{Key: "error", Value: msg, Repr: msg}}
		logx.Warn().
			Str("invocation_id", s.InvocationID).
			Str("node", NodeToolExecutor).
			Str("intent", string(s.Intent)).
			Str("error", msg).
			Msg("Chart tool failed")
		return s, nil
	}
	s.Error = ""
	s.ExecutionResult = sandbox.Mapping{{Key: ToolResultKey, Value: res.Chart}}
	logx.Debug().Str("invocation_id", s.InvocationID).Str("node", NodeToolExecutor).Msg("Chart built")
	return s, nil
}

// ===== Code Generator =====

func (n *Nodes) CodeGenerator(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	s.Retries++
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeCodeGenerator).
		Str("intent", string(s.Intent)).
		Int("retries", s.Retries).
		Bool("corrective", s.HasError()).
		Msg("Generating code")

	prompt, err := prompts.RenderCodegen(ctx, promptVars(s))
	if err == nil {
		var text string
		text, err = n.deps.LLM.Complete(ctx, prompt)
		if err == nil {
			s.CodeString = strings.TrimSpace(text)
			return s, nil
		}
	}
	s.CodeString = ""
	s.Error = "generation failed: " + err.Error()
	return s, nil
}

// ===== Code Executor =====

func (n *Nodes) CodeExecutor(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	code := parsers.ExtractCode(s.CodeString)
	if code == "" {
		if s.HasError() {
			logx.Debug().Str("invocation_id", s.InvocationID).Str("previous_error", s.Error).Msg("No code to execute")
		}
		s.Error = ErrNoCodeGenerated
		return s, nil
	}

	result, err := n.deps.Sandbox.Evaluate(ctx, code, s.Frame)
	if err != nil {
		err = errx.WrapSandbox(err)
		s.Error = err.Error()
		logx.Debug().
			Str("invocation_id", s.InvocationID).
			Str("node", NodeCodeExecutor).
			Int("retries", s.Retries).
			Int("status", errx.StatusOf(err)).
			Str("error", s.Error).
			Msg("Code execution failed")
		return s, nil
	}
	s.ExecutionResult = result
	s.Error = ""
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeCodeExecutor).
		Str("result_type", fmt.Sprintf("%T", result)).
		Msg("Code executed")
	return s, nil
}

// ===== Re-Planner =====

func (n *Nodes) Replan(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	prompt, err := prompts.RenderReplan(ctx, promptVars(s))
	var obj map[string]any
	if err == nil {
		obj, err = n.deps.LLM.Structured(ctx, prompt, ReplanSchema)
	}
	if err != nil {
		logx.Warn().Err(err).Str("invocation_id", s.InvocationID).Str("node", NodeReplan).Msg("Re-plan failed")
		s.Error = ErrReplanFailed
		return s, nil
	}

	intent, _ := model.ParseIntent(stringArg(obj, "intent"))
	s.Intent = intent
	if p := strings.TrimSpace(stringArg(obj, "user_prompt")); p != "" {
		s.UserPrompt = p
	}
	s.Error = ""
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeReplan).
		Str("intent", string(s.Intent)).
		Str("user_prompt", s.UserPrompt).
		Msg("New plan")
	return s, nil
}

// ===== Response Generator =====

func (n *Nodes) ResponseGenerator(ctx context.Context, s *model.AgentState) (*model.AgentState, error) {
	env := BuildEnvelope(s.ExecutionResult)
	env.FollowUpQuestions = n.followUps(ctx, s, env.ResponseText)
	s.FinalResponse = &env
	logx.Debug().
		Str("invocation_id", s.InvocationID).
		Str("node", NodeResponseGenerator).
		Bool("has_chart", env.PlotlyFig != nil).
		Int("dashboard_charts", len(env.PlotlyDashboard)).
		Bool("has_table", env.DataFrame != nil).
		Int("follow_ups", len(env.FollowUpQuestions)).
		Msg("Response ready")
	return s, nil
}

// followUps never fails: any error yields an empty list.
func (n *Nodes) followUps(ctx context.Context, s *model.AgentState, responseText string) []string {
	vars := promptVars(s)
	vars.Tool = tools.FollowUpTool.Name
	vars.ResponseText = responseText
	prompt, err := prompts.RenderFollowUp(ctx, vars)
	if err != nil {
		return []string{}
	}
	args, err := n.deps.LLM.ToolCall(ctx, prompt, tools.FollowUpTool)
	if err != nil {
		logx.Debug().Err(err).Str("invocation_id", s.InvocationID).Msg("No follow-up questions")
		return []string{}
	}
	return tools.FollowUpQuestions(args, n.deps.MaxFollowUps)
}
