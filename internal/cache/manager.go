package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCacheMiss 键不存在或已过期
	ErrCacheMiss = errors.New("cache miss")
	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Config Redis 连接与键空间配置
type Config struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// KeyPrefix 加在每个键前面，用于在共享实例中隔离 CodeCrew 的数据
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
	// DefaultTTL 写入时 ttl 为 0 则使用该值
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	PoolSize    int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		KeyPrefix:   "codecrew:",
		DefaultTTL:  time.Hour,
		MaxRetries:  3,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// Manager 持有 Redis 客户端，以 JSON 读写带前缀的键。
// 补全缓存（llm/cache）通过它存取响应。
type Manager struct {
	client *redis.Client
	config Config
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewManager 连接 Redis，连接不可用时返回错误
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Addr == "" {
		return nil, errors.New("cache: addr is required")
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultConfig().DialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		MaxRetries:  config.MaxRetries,
		PoolSize:    config.PoolSize,
		DialTimeout: config.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", config.Addr, err)
	}

	m := &Manager{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}
	m.logger.Info("cache connected",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("default_ttl", config.DefaultTTL))
	return m, nil
}

func (m *Manager) key(k string) string {
	return m.config.KeyPrefix + k
}

// acquire 在读锁下返回客户端，关闭后返回 ErrClosed
func (m *Manager) acquire() (*redis.Client, func(), error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return m.client, m.mu.RUnlock, nil
}

// Get 读取原始字符串，未命中返回 ErrCacheMiss
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	client, release, err := m.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	val, err := client.Get(ctx, m.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrCacheMiss
	case err != nil:
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set 写入原始字符串，ttl 为 0 时使用 DefaultTTL
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	client, release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err := client.Set(ctx, m.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// GetJSON 读取并解码 JSON 值。值损坏时视为未命中，由调用方重新生成。
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		m.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return ErrCacheMiss
	}
	return nil
}

// SetJSON 编码为 JSON 后写入
func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return m.Set(ctx, key, string(data), ttl)
}

// Ping 检查连接
func (m *Manager) Ping(ctx context.Context) error {
	client, release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()
	return client.Ping(ctx).Err()
}

// Close 关闭连接，可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Debug("cache closed")
	return m.client.Close()
}
