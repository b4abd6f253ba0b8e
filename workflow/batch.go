package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task 批量运行中的一个任务
type Task struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// TaskOutcome 单个任务的结果，Result 与 Err 恰有一个非空
type TaskOutcome struct {
	Task   Task            `json:"task"`
	Result *WorkflowResult `json:"result,omitempty"`
	Err    error           `json:"-"`
}

// Summary 批量运行汇总
type Summary struct {
	Tasks     int           `json:"tasks"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	TotalTime time.Duration `json:"total_time"`
	// AvgTime 为成功任务的平均执行时间
	AvgTime time.Duration `json:"avg_time"`
}

// BatchReport 批量运行报告，Outcomes 与输入任务顺序一致
type BatchReport struct {
	Outcomes []TaskOutcome `json:"outcomes"`
	Summary  Summary       `json:"summary"`
}

// RunBatch 并发运行相互独立的任务，最多 limit 个同时进行（<= 0 表示不限）。
// 单个任务失败不会取消其他任务，失败记录在对应的 TaskOutcome 中。
func (w *CodeDevelopment) RunBatch(ctx context.Context, tasks []Task, limit int) *BatchReport {
	start := time.Now()
	outcomes := make([]TaskOutcome, len(tasks))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			result, err := w.Run(ctx, task.Description)
			outcomes[i] = TaskOutcome{Task: task, Result: result, Err: err}
			return nil // 不让 errgroup 记录错误，每个任务的结果单独收集
		})
	}
	_ = g.Wait()

	report := &BatchReport{Outcomes: outcomes}
	report.Summary = summarize(outcomes, time.Since(start))

	w.logger.Info("batch completed",
		zap.Int("tasks", report.Summary.Tasks),
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("failed", report.Summary.Failed),
		zap.Duration("total_time", report.Summary.TotalTime))
	return report
}

func summarize(outcomes []TaskOutcome, total time.Duration) Summary {
	s := Summary{Tasks: len(outcomes), TotalTime: total}
	var sum time.Duration
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		sum += o.Result.ExecutionTime
	}
	if s.Succeeded > 0 {
		s.AvgTime = sum / time.Duration(s.Succeeded)
	}
	return s
}
