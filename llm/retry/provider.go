package retry

import (
	"context"

	"github.com/BaSui01/codecrew/llm"
	"go.uber.org/zap"
)

// Provider 为 llm.Provider 叠加指数退避重试。
// 重试发生在补全边界，调度器本身从不重试。
type Provider struct {
	inner   llm.Provider
	retryer *Retryer
	logger  *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// Wrap 返回带重试的 Provider
func Wrap(inner llm.Provider, policy *RetryPolicy, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name()))
	return &Provider{
		inner:   inner,
		retryer: NewRetryer(policy, logger),
		logger:  logger,
	}
}

func (p *Provider) Name() string { return p.inner.Name() }

// Close 透传给内部 Provider
func (p *Provider) Close() error { return llm.Close(p.inner) }

// Completion 调用内部 Provider，对可重试错误按策略重试
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := p.retryer.Do(ctx, func(attempt int) error {
		r, err := p.inner.Completion(ctx, req)
		if err != nil {
			p.logger.Warn("completion failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
