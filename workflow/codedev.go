package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/codecrew/agent/artifacts"
	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/llm/tokenizer"
	"github.com/BaSui01/codecrew/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/codecrew/workflow"

// MetricsRecorder 接收运行与轮次指标，由 internal/metrics.Collector 实现
type MetricsRecorder interface {
	conversation.TurnRecorder
	RecordRun(status, stopReason string, turns int, duration time.Duration, usage types.TokenUsage)
}

// Archive 持久化运行结果，由 workflow/history.Store 实现
type Archive interface {
	SaveResult(ctx context.Context, result *WorkflowResult) error
	SaveFailure(ctx context.Context, failure *RunFailure) error
}

// Observer 在每条消息追加后被调用
type Observer func(runID string, msg types.Message)

// Option 配置 CodeDevelopment
type Option func(*CodeDevelopment)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(w *CodeDevelopment) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTokenizer 在服务端未报告用量时用于估算
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(w *CodeDevelopment) { w.tokenizer = t }
}

// WithMetrics 设置指标收集器
func WithMetrics(m MetricsRecorder) Option {
	return func(w *CodeDevelopment) { w.metrics = m }
}

// WithArchive 设置结果归档
func WithArchive(a Archive) Option {
	return func(w *CodeDevelopment) { w.archive = a }
}

// WithObserver 设置消息观察者
func WithObserver(o Observer) Option {
	return func(w *CodeDevelopment) { w.observer = o }
}

// CodeDevelopment 三人代码开发工作流。
// 每次 Run 都创建新的 Agent 与调度器，因此可以并发调用。
type CodeDevelopment struct {
	config    Config
	provider  llm.Provider
	logger    *zap.Logger
	tokenizer tokenizer.Tokenizer
	metrics   MetricsRecorder
	archive   Archive
	observer  Observer

	tracer      trace.Tracer
	runCounter  metric.Int64Counter
	runDuration metric.Float64Histogram

	closeOnce sync.Once
	closeErr  error
}

// New 创建工作流。配置错误以 *types.ConfigurationError 返回。
func New(cfg Config, provider llm.Provider, opts ...Option) (*CodeDevelopment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, types.NewConfigurationError("provider", "must not be nil")
	}

	w := &CodeDevelopment{
		config:   cfg,
		provider: provider,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "workflow"))

	meter := otel.Meter(instrumentationName)
	var err error
	w.runCounter, err = meter.Int64Counter("codecrew.workflow.runs",
		metric.WithDescription("Workflow runs by status"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}
	w.runDuration, err = meter.Float64Histogram("codecrew.workflow.duration",
		metric.WithDescription("Workflow run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	return w, nil
}

// Config 返回工作流配置副本
func (w *CodeDevelopment) Config() Config { return w.config }

// Run 执行一次完整的代码开发对话。
// 成功时提取初始代码、评审意见与最终代码；失败时返回 *RunFailure，
// 其中保留部分对话记录与已用时间，不构造 WorkflowResult。
func (w *CodeDevelopment) Run(ctx context.Context, task string) (*WorkflowResult, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := w.logger.With(zap.String("run_id", runID))

	ctx, span := w.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.run_id", runID),
			attribute.String("llm.model", w.config.Model),
			attribute.Int("workflow.max_rounds", w.config.MaxRounds),
		))
	defer span.End()

	logger.Info("workflow started",
		zap.String("model", w.config.Model),
		zap.Int("agents", len(w.config.Agents)),
		zap.Int("max_rounds", w.config.MaxRounds))

	team, err := w.buildTeam(logger)
	if err != nil {
		return nil, err
	}

	opts := []conversation.Option{conversation.WithLogger(logger)}
	if w.metrics != nil {
		opts = append(opts, conversation.WithRecorder(w.metrics))
	}
	if w.observer != nil {
		opts = append(opts, conversation.WithObserver(func(msg types.Message) { w.observer(runID, msg) }))
	}
	rr, err := conversation.NewRoundRobin(team, w.config.Termination(), opts...)
	if err != nil {
		return nil, err
	}

	out, err := rr.Run(ctx, task)
	elapsed := time.Since(start)
	if err != nil {
		failure := &RunFailure{
			RunID:      runID,
			Task:       task,
			Err:        err,
			Transcript: rr.Transcript(),
			Elapsed:    elapsed,
			StartedAt:  start,
		}
		w.recordFailure(ctx, span, logger, failure)
		return nil, failure
	}

	roles := w.config.RoleAgents()
	result := &WorkflowResult{
		RunID:          runID,
		OriginalTask:   task,
		InitialCode:    artifacts.ExtractCode(out.Transcript, roles[RoleWriter]),
		ReviewFeedback: artifacts.ExtractReview(out.Transcript, roles[RoleReviewer]),
		FinalCode:      artifacts.ExtractCode(out.Transcript, roles[RoleOptimizer]),
		Transcript:     out.Transcript,
		Turns:          out.Turns,
		StopReason:     out.StopReason,
		ExecutionTime:  elapsed,
		StartedAt:      start,
	}
	if usage, ok := out.Transcript.Usage(); ok {
		result.TokenUsage = &usage
	}

	w.recordSuccess(ctx, span, logger, result)
	return result, nil
}

// Close 释放补全服务持有的资源，可重复调用
func (w *CodeDevelopment) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = llm.Close(w.provider)
		w.logger.Debug("workflow closed", zap.Error(w.closeErr))
	})
	return w.closeErr
}

func (w *CodeDevelopment) buildTeam(logger *zap.Logger) ([]conversation.Participant, error) {
	team := make([]conversation.Participant, 0, len(w.config.Agents))
	for _, ac := range w.config.Agents {
		opts := []conversation.AgentOption{conversation.WithAgentLogger(logger)}
		if w.tokenizer != nil {
			opts = append(opts, conversation.WithTokenizer(w.tokenizer))
		}
		agent, err := conversation.NewAgent(conversation.AgentConfig{
			Name:        ac.Name,
			Directive:   ac.Directive,
			Model:       w.config.Model,
			Temperature: w.config.Temperature,
			MaxTokens:   w.config.MaxTokens,
			TurnTimeout: w.config.TurnTimeout,
		}, w.provider, opts...)
		if err != nil {
			return nil, err
		}
		team = append(team, agent)
	}
	return team, nil
}

func (w *CodeDevelopment) recordSuccess(ctx context.Context, span trace.Span, logger *zap.Logger, result *WorkflowResult) {
	var usage types.TokenUsage
	if result.TokenUsage != nil {
		usage = *result.TokenUsage
	}
	if w.metrics != nil {
		w.metrics.RecordRun("completed", string(result.StopReason), result.Turns, result.ExecutionTime, usage)
	}
	attrs := metric.WithAttributes(attribute.String("status", "completed"))
	w.runCounter.Add(ctx, 1, attrs)
	w.runDuration.Record(ctx, result.ExecutionTime.Seconds(), attrs)

	span.SetAttributes(
		attribute.Int("workflow.turns", result.Turns),
		attribute.String("workflow.stop_reason", string(result.StopReason)),
	)
	span.SetStatus(codes.Ok, "")

	logger.Info("workflow completed",
		zap.Int("turns", result.Turns),
		zap.String("stop_reason", string(result.StopReason)),
		zap.Duration("elapsed", result.ExecutionTime),
		zap.Bool("final_code_found", result.FinalCode.Found))

	if w.archive != nil {
		if err := w.archive.SaveResult(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn("archive result failed", zap.Error(err))
		}
	}
}

func (w *CodeDevelopment) recordFailure(ctx context.Context, span trace.Span, logger *zap.Logger, failure *RunFailure) {
	reason := string(conversation.StopFailed)
	turns := failure.Transcript.Produced().Len()
	var runErr *conversation.RunError
	if errors.As(failure.Err, &runErr) {
		reason = string(runErr.Reason)
	}

	if w.metrics != nil {
		usage, _ := failure.Transcript.Usage()
		w.metrics.RecordRun("failed", reason, turns, failure.Elapsed, usage)
	}
	attrs := metric.WithAttributes(attribute.String("status", "failed"))
	w.runCounter.Add(ctx, 1, attrs)
	w.runDuration.Record(ctx, failure.Elapsed.Seconds(), attrs)

	span.RecordError(failure.Err)
	span.SetStatus(codes.Error, reason)

	logger.Error("workflow failed",
		zap.String("reason", reason),
		zap.Int("turns", turns),
		zap.Duration("elapsed", failure.Elapsed),
		zap.Error(failure.Err))

	if w.archive != nil {
		if err := w.archive.SaveFailure(context.WithoutCancel(ctx), failure); err != nil {
			logger.Warn("archive failure failed", zap.Error(err))
		}
	}
}
