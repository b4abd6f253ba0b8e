package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/codecrew/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

func TestCollector_RecordTurn(t *testing.T) {
	c := newTestCollector(t)

	c.RecordTurn("Writer", 200*time.Millisecond, nil)
	c.RecordTurn("Writer", 100*time.Millisecond, nil)
	c.RecordTurn("Reviewer", time.Second, &types.GenerationFailure{Agent: "Reviewer", Kind: types.FailureQuota})
	c.RecordTurn("Optimizer", time.Second, errors.New("plain"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("Writer", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("Reviewer", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationFailures.WithLabelValues("Reviewer", "quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationFailures.WithLabelValues("Optimizer", "unknown")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.turnDuration))
}

func TestCollector_RecordRun(t *testing.T) {
	c := newTestCollector(t)

	c.RecordRun("completed", "sentinel", 6, 3*time.Second, types.TokenUsage{PromptTokens: 100, CompletionTokens: 40, Cost: 0.01})
	c.RecordRun("failed", "generation_failed", 2, time.Second, types.TokenUsage{})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed", "sentinel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("failed", "generation_failed")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("completion")))
	assert.InDelta(t, 0.01, testutil.ToFloat64(c.cost), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(c.runTurns))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTurn(fmt.Sprintf("agent-%d", i%3), time.Millisecond, nil)
			}
		}(i)
	}
	wg.Wait()

	total := 0.0
	for i := 0; i < 3; i++ {
		total += testutil.ToFloat64(c.turnsTotal.WithLabelValues(fmt.Sprintf("agent-%d", i), "success"))
	}
	assert.Equal(t, 1000.0, total)
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRun("completed", "max_turns", 4, time.Second, types.TokenUsage{})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_workflow_runs_total{status="completed",stop_reason="max_turns"} 1`)
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, nil)
	assert.Panics(t, func() { NewCollector("dup", reg, nil) })
}
