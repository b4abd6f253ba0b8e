package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/BaSui01/codecrew/internal/cache"
	"github.com/BaSui01/codecrew/llm"
	"go.uber.org/zap"
)

// Store 是补全缓存的后端存储。*cache.Manager 满足该接口。
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Config 补全缓存配置
type Config struct {
	// TTL 缓存条目的过期时间，0 表示使用 Store 的默认值
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// KeyPrefix 缓存键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		TTL:       time.Hour,
		KeyPrefix: "llm:completion:",
	}
}

// Stats 缓存命中统计
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// CachingProvider 对相同的补全请求复用上一次成功的响应。
// 只缓存成功响应；存储故障只记录日志，不影响补全。
type CachingProvider struct {
	inner  llm.Provider
	store  Store
	config Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

var _ llm.Provider = (*CachingProvider)(nil)

// NewCachingProvider 创建带缓存的 Provider
func NewCachingProvider(inner llm.Provider, store Store, config Config, logger *zap.Logger) *CachingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &CachingProvider{
		inner:  inner,
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "completion_cache"), zap.String("provider", inner.Name())),
	}
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

// Close 透传给内部 Provider，不关闭 Store
func (p *CachingProvider) Close() error { return llm.Close(p.inner) }

// Completion 命中缓存时直接返回，否则调用内部 Provider 并回写
func (p *CachingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	key := p.Key(req)

	var cached llm.ChatResponse
	err := p.store.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		p.hits.Add(1)
		p.logger.Debug("completion cache hit", zap.String("key", key))
		return &cached, nil
	case cache.IsCacheMiss(err):
		p.misses.Add(1)
	default:
		p.errors.Add(1)
		p.logger.Warn("completion cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	resp, err := p.inner.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.store.SetJSON(ctx, key, resp, p.config.TTL); err != nil {
		p.errors.Add(1)
		p.logger.Warn("completion cache write failed", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

// Stats 返回当前命中统计
func (p *CachingProvider) Stats() Stats {
	return Stats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Errors: p.errors.Load(),
	}
}

// keyMaterial 只包含影响补全结果的字段，TraceID/Metadata/Timeout 不参与
type keyMaterial struct {
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p"`
	Stop        []string      `json:"stop"`
}

// Key 生成请求的缓存键
func (p *CachingProvider) Key(req *llm.ChatRequest) string {
	data, _ := json.Marshal(keyMaterial{
		Provider:    p.inner.Name(),
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	})
	hash := sha256.Sum256(data)
	return p.config.KeyPrefix + hex.EncodeToString(hash[:16])
}
