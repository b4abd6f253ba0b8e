package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/codecrew/internal/cache"
	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/testutil/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	m, err := cache.NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func chatRequest(content string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       "gpt-4",
		Temperature: 0.1,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You write code."},
			{Role: llm.RoleUser, Content: content},
		},
	}
}

func TestCachingProvider_HitAfterMiss(t *testing.T) {
	_, store := newRedisStore(t)
	inner := mocks.NewScriptedProvider().ThenReply("first").ThenReply("second")
	p := NewCachingProvider(inner, store, DefaultConfig(), nil)
	ctx := context.Background()

	resp, err := p.Completion(ctx, chatRequest("task"))
	require.NoError(t, err)
	content, _ := resp.FirstContent()
	assert.Equal(t, "first", content)

	resp, err = p.Completion(ctx, chatRequest("task"))
	require.NoError(t, err)
	content, _ = resp.FirstContent()
	assert.Equal(t, "first", content)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	assert.Equal(t, 1, inner.CallCount())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, p.Stats())
}

func TestCachingProvider_DifferentRequestsMiss(t *testing.T) {
	_, store := newRedisStore(t)
	inner := mocks.NewScriptedProvider()
	p := NewCachingProvider(inner, store, DefaultConfig(), nil)
	ctx := context.Background()

	_, err := p.Completion(ctx, chatRequest("a"))
	require.NoError(t, err)
	_, err = p.Completion(ctx, chatRequest("b"))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.CallCount())
}

func TestCachingProvider_KeyIgnoresTraceAndTimeout(t *testing.T) {
	p := NewCachingProvider(mocks.NewScriptedProvider(), nil, Config{}, nil)

	a := chatRequest("same")
	b := chatRequest("same")
	b.TraceID = "trace-1"
	b.Timeout = time.Second
	b.Metadata = map[string]string{"agent": "writer"}

	assert.Equal(t, p.Key(a), p.Key(b))
	assert.Contains(t, p.Key(a), "llm:completion:")

	c := chatRequest("same")
	c.Temperature = 0.7
	assert.NotEqual(t, p.Key(a), p.Key(c))
}

func TestCachingProvider_ErrorsAreNotCached(t *testing.T) {
	_, store := newRedisStore(t)
	failure := &llm.Error{Code: llm.ErrUpstreamError, Message: "boom", Retryable: true}
	inner := mocks.NewScriptedProvider().ThenError(failure).ThenReply("ok")
	p := NewCachingProvider(inner, store, DefaultConfig(), nil)
	ctx := context.Background()

	_, err := p.Completion(ctx, chatRequest("task"))
	assert.ErrorIs(t, err, failure)

	resp, err := p.Completion(ctx, chatRequest("task"))
	require.NoError(t, err)
	content, _ := resp.FirstContent()
	assert.Equal(t, "ok", content)
}

type brokenStore struct{}

func (brokenStore) GetJSON(context.Context, string, any) error {
	return errors.New("connection refused")
}

func (brokenStore) SetJSON(context.Context, string, any, time.Duration) error {
	return errors.New("connection refused")
}

func TestCachingProvider_StoreFailureFallsThrough(t *testing.T) {
	inner := mocks.NewScriptedProvider().ThenReply("live")
	p := NewCachingProvider(inner, brokenStore{}, DefaultConfig(), zap.NewNop())

	resp, err := p.Completion(context.Background(), chatRequest("task"))
	require.NoError(t, err)
	content, _ := resp.FirstContent()
	assert.Equal(t, "live", content)
	assert.Equal(t, int64(2), p.Stats().Errors)

	require.NoError(t, p.Close())
	assert.True(t, inner.Closed())
}

func TestCachingProvider_ExpiredEntryMisses(t *testing.T) {
	mr, store := newRedisStore(t)
	inner := mocks.NewScriptedProvider()
	p := NewCachingProvider(inner, store, Config{TTL: time.Minute}, nil)
	ctx := context.Background()

	_, err := p.Completion(ctx, chatRequest("task"))
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = p.Completion(ctx, chatRequest("task"))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.CallCount())
}
