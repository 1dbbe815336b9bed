// Package session binds one dataset to an analysis runner and its chat history.
// A Session is the explicit per-chat context; nothing about a chat lives in
// package-level state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/datasense-ai/server/internal/agent/graph"
	"github.com/datasense-ai/server/internal/agent/graph/conversations"
	"github.com/datasense-ai/server/internal/agent/llm"
	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// DashboardPrompt is the prompt behind the dashboard shortcut.
const DashboardPrompt = "Generate a comprehensive dashboard."

var (
	ErrNoDataset   = errors.New("no dataset loaded")
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Deps are shared by every session of a process.
type Deps struct {
	LLM     llm.Client
	Sandbox sandbox.Evaluator
	Agent   model.AgentConfig
	Summary dataset.SummaryOptions
	Turns   *conversations.TurnsManager
}

type Session struct {
	ID      string
	Name    string
	Frame   *dataset.Frame
	Summary string
	Report  string

	runner *graph.Runner
	turns  *conversations.TurnsManager
}

// New summarises frame once, builds its runner and records the quality
// report as the opening assistant turn.
func New(ctx context.Context, deps Deps, name string, frame *dataset.Frame) (*Session, error) {
	if frame == nil {
		return nil, ErrNoDataset
	}
	if deps.Turns == nil {
		return nil, fmt.Errorf("turns manager is nil")
	}
	if name == "" {
		name = frame.Name
	}

	summary := dataset.Summarize(frame, deps.Summary)
	runner, err := graph.NewRunner(ctx, graph.Config{
		LLM:     deps.LLM,
		Sandbox: deps.Sandbox,
		Agent:   deps.Agent,
	}, frame, summary)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	s := &Session{
		ID:      "chat_" + uuid.NewString(),
		Name:    name,
		Frame:   frame,
		Summary: summary,
		Report:  dataset.QualityReport(frame),
		runner:  runner,
		turns:   deps.Turns,
	}
	if err := s.turns.RecordAssistant(ctx, s.ID, model.Envelope{ResponseText: s.Report}); err != nil {
		return nil, fmt.Errorf("record quality report: %w", err)
	}

	rows, cols := frame.Shape()
	logx.Info().Str("session_id", s.ID).Str("name", name).Int("rows", rows).Int("columns", cols).Msg("Session started")
	return s, nil
}

// Ask runs one analysis. History write failures are logged and never
// affect the returned envelope.
func (s *Session) Ask(ctx context.Context, prompt string) (model.Envelope, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.Envelope{}, ErrEmptyPrompt
	}
	if err := s.turns.RecordUser(ctx, s.ID, prompt); err != nil {
		logx.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to record user turn")
	}

	env := s.runner.Invoke(ctx, prompt)

	if err := s.turns.RecordAssistant(ctx, s.ID, env); err != nil {
		logx.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to record assistant turn")
	}
	return env, nil
}

func (s *Session) Dashboard(ctx context.Context) (model.Envelope, error) {
	return s.Ask(ctx, DashboardPrompt)
}

func (s *Session) History(ctx context.Context) ([]model.Turn, error) {
	return s.turns.History(ctx, s.ID)
}

// Close drops the recorded history.
func (s *Session) Close(ctx context.Context) error {
	return s.turns.Clear(ctx, s.ID)
}
