package conversations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/agent/repo"
	"github.com/datasense-ai/server/internal/chart"
)

func TestRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	tm := NewTurnsManager(repo.NewMemorySessionRepository(), model.SessionConfig{MaxTurns: 2})

	require.NoError(t, tm.RecordUser(ctx, "s1", "  Show sales  "))
	require.NoError(t, tm.RecordAssistant(ctx, "s1", model.Envelope{
		ResponseText:      "Here is the chart you requested.",
		PlotlyFig:         chart.Bar(nil, nil, "x", "y", "t"),
		FollowUpQuestions: []string{"Next?"},
	}))
	require.NoError(t, tm.RecordUser(ctx, "s1", "And a dashboard"))

	turns, err := tm.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleAssistant, turns[0].Role)
	assert.Equal(t, 1, turns[0].Charts)
	assert.Equal(t, []string{"Next?"}, turns[0].FollowUps)
	assert.Equal(t, "And a dashboard", turns[1].Content)
}

func TestRecordRejectsEmptySession(t *testing.T) {
	tm := NewTurnsManager(repo.NewMemorySessionRepository(), model.SessionConfig{})
	assert.Error(t, tm.RecordUser(context.Background(), "", "hi"))
	assert.Error(t, tm.RecordAssistant(context.Background(), "", model.Envelope{}))
}

func TestTrimTail(t *testing.T) {
	turns := []model.Turn{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	assert.Len(t, trimTail(turns, 0), 3)
	assert.Len(t, trimTail(turns, 5), 3)
	got := trimTail(turns, 2)
	assert.Equal(t, "b", got[0].Content)
	assert.Equal(t, "c", got[1].Content)
}
