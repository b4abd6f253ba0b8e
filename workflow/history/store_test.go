package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/codecrew/agent/artifacts"
	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/internal/database"
	"github.com/BaSui01/codecrew/types"
	"github.com/BaSui01/codecrew/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	pm, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
		Pool:   database.PoolConfig{MaxOpenConns: 1},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	store, err := NewStore(pm.DB(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func transcript(task string, msgs ...types.Message) types.Transcript {
	tr := types.Transcript{}.Append(types.NewTaskMessage(task))
	for _, m := range msgs {
		tr = tr.Append(m)
	}
	return tr
}

func TestNewStore_NilDB(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}

func TestStore_SaveResult(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	tr := transcript("write fib",
		types.NewMessage("CodeWriter", "```go\nfunc fib() {}\n```").WithUsage(types.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}),
		types.NewMessage("CodeReviewer", "fine"),
	)
	started := time.Now().Add(-time.Second)
	result := &workflow.WorkflowResult{
		RunID:          "run-1",
		OriginalTask:   "write fib",
		InitialCode:    artifacts.Artifact{Text: "func fib() {}", Found: true, Count: 1},
		ReviewFeedback: artifacts.Artifact{Text: "fine", Found: true, Count: 1},
		FinalCode:      artifacts.Artifact{Text: artifacts.NoCodeFound},
		Transcript:     tr,
		Turns:          2,
		StopReason:     conversation.StopMaxTurns,
		ExecutionTime:  1500 * time.Millisecond,
		StartedAt:      started,
		TokenUsage:     &types.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}
	require.NoError(t, store.SaveResult(ctx, result))

	rec, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "max_turns", rec.StopReason)
	assert.Equal(t, "func fib() {}", rec.InitialCode)
	assert.True(t, rec.InitialCodeFound)
	assert.True(t, rec.ReviewFound)
	assert.Equal(t, artifacts.NoCodeFound, rec.FinalCode)
	assert.False(t, rec.FinalCodeFound)
	assert.Equal(t, 7, rec.TotalTokens)
	assert.Equal(t, 1500*time.Millisecond, rec.Elapsed())
	assert.Empty(t, rec.Error)

	msgs, err := rec.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "write fib", msgs.Task())
	assert.Equal(t, "CodeReviewer", msgs[2].Source)
	require.NotNil(t, msgs[1].Usage)
	assert.Equal(t, 7, msgs[1].Usage.TotalTokens)

	// run ids are unique
	assert.Error(t, store.SaveResult(ctx, result))
}

func TestStore_SaveResultKeepsAbsentArtifacts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	// 真实回复恰好等于占位文本时，仍能与缺失区分
	result := &workflow.WorkflowResult{
		RunID:          "run-absent",
		OriginalTask:   "task",
		InitialCode:    artifacts.Artifact{Text: artifacts.NoCodeFound},
		ReviewFeedback: artifacts.Artifact{Text: artifacts.NoReviewFound, Found: true, Count: 1},
		FinalCode:      artifacts.Artifact{Text: artifacts.NoCodeFound},
		Transcript:     transcript("task", types.NewMessage("CodeReviewer", artifacts.NoReviewFound)),
		Turns:          1,
		StopReason:     conversation.StopMaxTurns,
		StartedAt:      time.Now(),
	}
	require.NoError(t, store.SaveResult(ctx, result))

	rec, err := store.Get(ctx, "run-absent")
	require.NoError(t, err)
	assert.Equal(t, artifacts.NoCodeFound, rec.InitialCode)
	assert.False(t, rec.InitialCodeFound)
	assert.Equal(t, artifacts.NoReviewFound, rec.ReviewFeedback)
	assert.True(t, rec.ReviewFound)
	assert.False(t, rec.FinalCodeFound)
}

func TestStore_SaveFailure(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	tr := transcript("task", types.NewMessage("CodeWriter", "draft"))
	cause := &types.GenerationFailure{Agent: "CodeReviewer", Turn: 2, Kind: types.FailureRateLimit, Cause: errors.New("429")}
	failure := &workflow.RunFailure{
		RunID: "run-2",
		Task:  "task",
		Err: &conversation.RunError{
			Reason:     conversation.StopFailed,
			Cause:      cause,
			LastTurn:   1,
			LastAgent:  "CodeWriter",
			Transcript: tr,
		},
		Transcript: tr,
		Elapsed:    250 * time.Millisecond,
		StartedAt:  time.Now(),
	}
	require.NoError(t, store.SaveFailure(ctx, failure))

	rec, err := store.Get(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "generation_failed", rec.StopReason)
	assert.Equal(t, 1, rec.Turns)
	assert.Contains(t, rec.Error, "429")
	assert.Empty(t, rec.FinalCode)

	msgs, err := rec.Messages()
	require.NoError(t, err)
	assert.Len(t, msgs.Produced(), 1)
}

func TestStore_ListAndPrune(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.SaveResult(ctx, &workflow.WorkflowResult{
			RunID:        id,
			OriginalTask: id,
			Transcript:   transcript(id),
			StopReason:   conversation.StopSentinel,
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.SaveFailure(ctx, &workflow.RunFailure{
		RunID:     "broken",
		Task:      "broken",
		Err:       errors.New("boom"),
		StartedAt: base.Add(30 * time.Minute),
	}))

	all, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.RunID
	}
	assert.Equal(t, []string{"new", "mid", "broken", "old"}, ids)

	limited, err := store.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].RunID)

	failed, err := store.List(ctx, ListOptions{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].RunID)
	assert.Equal(t, "generation_failed", failed[0].StopReason)

	deleted, err := store.Prune(ctx, base.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}
