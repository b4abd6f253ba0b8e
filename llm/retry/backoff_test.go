package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

var errRetryable = &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}

func TestRetryer_Success(t *testing.T) {
	r := NewRetryer(fastPolicy(), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(int) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls, "应该只调用一次")
}

func TestRetryer_RetryAndSuccess(t *testing.T) {
	var retried []int
	policy := fastPolicy()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}
	r := NewRetryer(policy, nil)

	calls := 0
	err := r.Do(context.Background(), func(int) error {
		calls++
		if calls < 3 {
			return errRetryable
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryer_NonRetryableStopsImmediately(t *testing.T) {
	r := NewRetryer(fastPolicy(), nil)
	quota := &llm.Error{Code: llm.ErrQuotaExceeded, Message: "quota"}

	calls := 0
	err := r.Do(context.Background(), func(int) error {
		calls++
		return quota
	})

	assert.ErrorIs(t, err, quota)
	assert.Equal(t, 1, calls)
}

func TestRetryer_Exhausted(t *testing.T) {
	r := NewRetryer(fastPolicy(), nil)

	calls := 0
	err := r.Do(context.Background(), func(int) error {
		calls++
		return errRetryable
	})

	assert.ErrorIs(t, err, errRetryable)
	assert.Equal(t, 4, calls)
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	policy := fastPolicy()
	policy.InitialDelay = time.Hour
	policy.MaxDelay = time.Hour
	r := NewRetryer(policy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func(int) error {
		calls++
		cancel()
		return errRetryable
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errRetryable)
	assert.Equal(t, 1, calls)
}

func TestRetryer_CalculateDelay(t *testing.T) {
	r := NewRetryer(&RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}, nil)
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 50*time.Millisecond, r.calculateDelay(4))
}

func TestRetryer_CustomShouldRetry(t *testing.T) {
	policy := fastPolicy()
	policy.ShouldRetry = func(err error) bool { return true }
	r := NewRetryer(policy, nil)

	calls := 0
	_ = r.Do(context.Background(), func(int) error {
		calls++
		return errors.New("plain")
	})
	assert.Equal(t, 4, calls)
}

func TestProvider_RetriesCompletion(t *testing.T) {
	inner := mocks.NewScriptedProvider().
		ThenError(errRetryable).
		ThenError(errRetryable).
		ThenReply("ok")

	p := Wrap(inner, fastPolicy(), zap.NewNop())
	assert.Equal(t, "mock", p.Name())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	content, _ := resp.FirstContent()
	assert.Equal(t, "ok", content)
	assert.Equal(t, 3, inner.CallCount())
	assert.NoError(t, p.Close())
	assert.True(t, inner.Closed())
}
