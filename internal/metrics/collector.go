package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/codecrew/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 工作流与对话指标收集器
type Collector struct {
	// 工作流指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runTurns    prometheus.Histogram

	// 对话轮次指标
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec

	// Token 指标
	tokensUsed *prometheus.CounterVec
	cost       prometheus.Counter

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registry。
func NewCollector(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	c := &Collector{
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 工作流指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"status", "stop_reason"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.runTurns = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_turns",
			Help:      "Number of produced messages per workflow run",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
	)

	// 对话轮次指标
	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Total number of conversation turns",
		},
		[]string{"agent", "status"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_turn_duration_seconds",
			Help:      "Conversation turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.generationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Total number of failed completions by kind",
		},
		[]string{"agent", "kind"},
	)

	// Token 指标
	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"type"}, // type: prompt, completion
	)

	c.cost = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_total",
			Help:      "Total LLM cost in USD",
		},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordTurn 记录一轮对话
func (c *Collector) RecordTurn(agent string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		kind := types.FailureUnknown
		var gf *types.GenerationFailure
		if errors.As(err, &gf) {
			kind = gf.Kind
		}
		c.generationFailures.WithLabelValues(agent, string(kind)).Inc()
	}
	c.turnsTotal.WithLabelValues(agent, status).Inc()
	c.turnDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordRun 记录一次工作流运行
func (c *Collector) RecordRun(status, stopReason string, turns int, duration time.Duration, usage types.TokenUsage) {
	c.runsTotal.WithLabelValues(status, stopReason).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.runTurns.Observe(float64(turns))

	if usage.PromptTokens > 0 {
		c.tokensUsed.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		c.tokensUsed.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	}
	if usage.Cost > 0 {
		c.cost.Add(usage.Cost)
	}
}

// Handler 返回 Prometheus 抓取端点
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
