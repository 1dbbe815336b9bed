package conversations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datasense-ai/server/internal/agent/model"
)

type TurnsManager struct {
	sessionRepo model.SessionRepository
	maxTurns    int
}

func NewTurnsManager(sessionRepo model.SessionRepository, config model.SessionConfig) *TurnsManager {
	return &TurnsManager{
		sessionRepo: sessionRepo,
		maxTurns:    config.MaxTurns,
	}
}

// =========== Recording ===========
func (tm *TurnsManager) RecordUser(ctx context.Context, sessionID string, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}
	return tm.sessionRepo.AddTurn(ctx, sessionID, model.Turn{
		Role:      model.RoleUser,
		Content:   prompt,
		CreatedAt: time.Now().UTC(),
	})
}

// RecordAssistant stores the text part of an envelope plus a count of what
// else it carried; charts and tables are not persisted.
func (tm *TurnsManager) RecordAssistant(ctx context.Context, sessionID string, env model.Envelope) error {
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}
	charts := len(env.PlotlyDashboard)
	if env.PlotlyFig != nil {
		charts++
	}
	return tm.sessionRepo.AddTurn(ctx, sessionID, model.Turn{
		Role:      model.RoleAssistant,
		Content:   env.ResponseText,
		FollowUps: env.FollowUpQuestions,
		Charts:    charts,
		HasTable:  env.DataFrame != nil,
		CreatedAt: time.Now().UTC(),
	})
}

// =========== Reading ===========

// History returns at most maxTurns of the most recent turns.
func (tm *TurnsManager) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	turns, err := tm.sessionRepo.LoadTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return trimTail(turns, tm.maxTurns), nil
}

func (tm *TurnsManager) Clear(ctx context.Context, sessionID string) error {
	return tm.sessionRepo.ClearTurns(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(turns []model.Turn, maxTurns int) []model.Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		result := make([]model.Turn, len(turns))
		copy(result, turns)
		return result
	}
	source := turns[len(turns)-maxTurns:]
	result := make([]model.Turn, len(source))
	copy(result, source)
	return result
}
