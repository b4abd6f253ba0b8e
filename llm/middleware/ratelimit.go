package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/codecrew/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig 客户端限流配置
type RateLimitConfig struct {
	// RPS 每秒允许的请求数，<= 0 表示不限流
	RPS float64 `yaml:"rps" json:"rps"`
	// Burst 突发容量
	Burst int `yaml:"burst" json:"burst"`
}

// RateLimitedProvider 在调用上游之前等待令牌，避免触发服务端 429
type RateLimitedProvider struct {
	inner   llm.Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ llm.Provider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider 创建限流包装器；RPS <= 0 时直接返回 inner
func NewRateLimitedProvider(inner llm.Provider, cfg RateLimitConfig, logger *zap.Logger) llm.Provider {
	if cfg.RPS <= 0 {
		return inner
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:  logger.With(zap.String("component", "rate_limiter"), zap.String("provider", inner.Name())),
	}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

// Close 透传给内部 Provider
func (p *RateLimitedProvider) Close() error { return llm.Close(p.inner) }

// Completion 获取令牌后调用内部 Provider。
// 等待期间超过 ctx 的 deadline（含 Wait 预判会超时的情况）返回 ErrUpstreamTimeout，
// 其他原因中止返回 ErrRateLimited。
func (p *RateLimitedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug("rate limiter wait aborted", zap.Error(err))
		if deadlineHit(ctx) {
			return nil, &llm.Error{
				Code:       llm.ErrUpstreamTimeout,
				Message:    fmt.Sprintf("deadline reached waiting for rate limiter: %v", err),
				HTTPStatus: http.StatusGatewayTimeout,
				Retryable:  true,
				Provider:   p.inner.Name(),
			}
		}
		return nil, &llm.Error{
			Code:      llm.ErrRateLimited,
			Message:   fmt.Sprintf("local rate limit: %v", err),
			Retryable: true,
			Provider:  p.inner.Name(),
		}
	}
	return p.inner.Completion(ctx, req)
}

// deadlineHit 判断 Wait 失败是否由 deadline 导致。
// rate.Limiter 在令牌赶不上 deadline 时提前返回，此时 ctx 尚未过期。
func deadlineHit(ctx context.Context) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	_, ok := ctx.Deadline()
	return ok && ctx.Err() == nil
}
