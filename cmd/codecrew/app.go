package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/codecrew/config"
	"github.com/BaSui01/codecrew/internal/cache"
	"github.com/BaSui01/codecrew/internal/database"
	"github.com/BaSui01/codecrew/internal/metrics"
	"github.com/BaSui01/codecrew/internal/server"
	"github.com/BaSui01/codecrew/internal/telemetry"
	"github.com/BaSui01/codecrew/llm"
	llmcache "github.com/BaSui01/codecrew/llm/cache"
	"github.com/BaSui01/codecrew/llm/middleware"
	"github.com/BaSui01/codecrew/llm/providers/openaicompat"
	"github.com/BaSui01/codecrew/llm/retry"
	"github.com/BaSui01/codecrew/llm/tokenizer"
	"github.com/BaSui01/codecrew/types"
	"github.com/BaSui01/codecrew/workflow"
	"github.com/BaSui01/codecrew/workflow/history"
)

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	workflow  *workflow.CodeDevelopment
	history   *history.Store
	db        *database.PoolManager
	cache     *cache.Manager
	telemetry *telemetry.Providers
	metrics   *server.Manager
}

// newApp 组装工作流。base 非空时跳过 HTTP 客户端构造（测试注入）。
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, base llm.Provider, observer workflow.Observer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	tp, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = tp

	if base == nil {
		if base, err = newCompletionClient(cfg.LLM, logger); err != nil {
			return nil, err
		}
	}
	provider := middleware.NewRateLimitedProvider(base, middleware.RateLimitConfig{
		RPS:   cfg.LLM.RateLimitRPS,
		Burst: cfg.LLM.RateLimitBurst,
	}, logger)

	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries
	provider = retry.Wrap(provider, policy, logger)

	if cfg.Cache.Enabled {
		if provider, err = a.withCache(provider); err != nil {
			return nil, err
		}
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithTokenizer(tokenizer.ForModel(cfg.LLM.Model)),
	}
	if observer != nil {
		opts = append(opts, workflow.WithObserver(observer))
	}
	if cfg.Metrics.Enabled {
		collector, err := a.startMetrics()
		if err != nil {
			return nil, err
		}
		opts = append(opts, workflow.WithMetrics(collector))
	}
	if cfg.Database.Enabled {
		store, err := a.openHistory()
		if err != nil {
			return nil, err
		}
		opts = append(opts, workflow.WithArchive(store))
	}

	wf, err := workflow.New(workflowConfig(cfg), provider, opts...)
	if err != nil {
		return nil, err
	}
	a.workflow = wf
	ok = true
	return a, nil
}

// newCompletionClient 构造 OpenAI 兼容客户端，缺少 API Key 时报配置错误
func newCompletionClient(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, types.NewConfigurationError("llm.api_key", "set llm.api_key, CODECREW_LLM_API_KEY or OPENAI_API_KEY")
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: "openai",
		APIKey:       key,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger), nil
}

func (a *app) withCache(inner llm.Provider) (llm.Provider, error) {
	cc := cache.DefaultConfig()
	cc.Addr = a.cfg.Cache.Addr
	cc.Password = a.cfg.Cache.Password
	cc.DB = a.cfg.Cache.DB
	cc.KeyPrefix = a.cfg.Cache.KeyPrefix
	cc.DefaultTTL = a.cfg.Cache.TTL

	mgr, err := cache.NewManager(cc, a.logger)
	if err != nil {
		return nil, fmt.Errorf("completion cache: %w", err)
	}
	a.cache = mgr

	lc := llmcache.DefaultConfig()
	lc.TTL = a.cfg.Cache.TTL
	return llmcache.NewCachingProvider(inner, mgr, lc, a.logger), nil
}

func (a *app) startMetrics() (*metrics.Collector, error) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(a.cfg.Metrics.Namespace, reg, a.logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	sc := server.DefaultConfig()
	sc.Addr = a.cfg.Metrics.Addr
	a.metrics = server.NewManager(mux, sc, a.logger)
	if err := a.metrics.Start(); err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}
	return collector, nil
}

func (a *app) openHistory() (*history.Store, error) {
	pm, err := database.Open(database.Config{
		Driver: a.cfg.Database.Driver,
		DSN:    a.cfg.Database.DSN,
		Pool: database.PoolConfig{
			MaxOpenConns:    a.cfg.Database.MaxOpenConns,
			MaxIdleConns:    a.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		},
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("history database: %w", err)
	}
	a.db = pm

	store, err := history.NewStore(pm.DB(), a.logger)
	if err != nil {
		return nil, err
	}
	a.history = store
	return store, nil
}

// close 按依赖逆序释放资源
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.workflow != nil {
		errs = append(errs, a.workflow.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown completed with errors", zap.Error(err))
	}
}

// workflowConfig 把文件配置映射为工作流配置，未配置团队时使用默认团队
func workflowConfig(cfg *config.Config) workflow.Config {
	wc := workflow.DefaultConfig()
	wc.MaxRounds = cfg.Workflow.MaxRounds
	wc.Sentinel = cfg.Workflow.Sentinel
	wc.SentinelSources = cfg.Workflow.SentinelSources
	wc.TurnTimeout = cfg.Workflow.TurnTimeout
	wc.Model = cfg.LLM.Model
	wc.Temperature = float32(cfg.LLM.Temperature)
	wc.MaxTokens = cfg.LLM.MaxTokens

	if len(cfg.Workflow.Agents) > 0 {
		wc.Agents = make([]workflow.AgentConfig, len(cfg.Workflow.Agents))
		for i, ac := range cfg.Workflow.Agents {
			wc.Agents[i] = workflow.AgentConfig{
				Name:      ac.Name,
				Directive: ac.Directive,
				Role:      workflow.Role(ac.Role),
			}
		}
	}
	return wc
}

// newLogger 根据日志配置构造 zap logger
func newLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
