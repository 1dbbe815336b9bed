package model

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one recorded chat message of a session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	FollowUps []string  `json:"follow_up_questions,omitempty"`
	Charts    int       `json:"charts,omitempty"`
	HasTable  bool      `json:"has_table,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionRepository interface {
	// AddTurn appends a turn to the session history
	AddTurn(ctx context.Context, sessionID string, turn Turn) error

	// LoadTurns returns the recorded turns, oldest first
	LoadTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// ClearTurns removes the session history
	ClearTurns(ctx context.Context, sessionID string) error

	// CountTurns returns the number of recorded turns
	CountTurns(ctx context.Context, sessionID string) (int, error)
}
