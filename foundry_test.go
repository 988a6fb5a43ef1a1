package foundry_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	foundry "github.com/kunalsaurav01/agentic-architect"
)

func TestInMemoryApprovalFlow(t *testing.T) {
	eng, err := foundry.NewInMemoryEngine(foundry.NewStaticCapabilities(), foundry.Settings{})
	require.NoError(t, err)
	ctx := context.Background()

	state, err := foundry.Start(ctx, eng, foundry.StartRequest{
		UserIntent: "a 5-minute grounding exercise for panic episodes",
	})
	require.NoError(t, err)

	assert.Equal(t, foundry.StatusPendingHumanReview, state.ApprovalStatus)
	assert.Equal(t, foundry.StepHumanReview, state.ActiveStep)
	assert.NotEmpty(t, state.CurrentDraft)
	assert.NotEmpty(t, state.DraftVersions)
	assert.Greater(t, state.ClinicalScore, 0.0)
	assert.Greater(t, state.Empathy.Overall, 0.0)

	state, err = foundry.SubmitDecision(ctx, eng, state.ThreadID, foundry.Decision{
		Approved: true,
		Feedback: "ready for publication",
	})
	require.NoError(t, err)
	assert.Equal(t, foundry.StatusApproved, state.ApprovalStatus)
	assert.Equal(t, foundry.StepFinalize, state.ActiveStep)
}

func TestSQLiteEngineResumesAcrossInstances(t *testing.T) {
	db, err := sql.Open("sqlite", "file:foundrytest?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	eng1, err := foundry.NewSQLiteEngine(db, foundry.NewStaticCapabilities(), foundry.Settings{})
	require.NoError(t, err)
	state, err := foundry.Start(ctx, eng1, foundry.StartRequest{
		UserIntent: "a sleep hygiene protocol",
		ThreadID:   "shared-thread",
	})
	require.NoError(t, err)
	require.Equal(t, foundry.StatusPendingHumanReview, state.ApprovalStatus)

	// A second engine over the same database picks the session up.
	eng2, err := foundry.NewSQLiteEngine(db, foundry.NewStaticCapabilities(), foundry.Settings{})
	require.NoError(t, err)

	resumed, err := foundry.Resume(ctx, eng2, "shared-thread")
	require.NoError(t, err)
	assert.Equal(t, state.ApprovalStatus, resumed.ApprovalStatus)
	assert.Equal(t, state.CurrentDraft, resumed.CurrentDraft)

	final, err := foundry.SubmitDecision(ctx, eng2, "shared-thread", foundry.Decision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, foundry.StatusApproved, final.ApprovalStatus)
}
