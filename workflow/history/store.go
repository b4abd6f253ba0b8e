package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/types"
	"github.com/BaSui01/codecrew/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 运行状态
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound 运行记录不存在
var ErrNotFound = errors.New("run record not found")

// RunRecord 一次工作流运行的持久化记录
type RunRecord struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	RunID            string    `gorm:"size:36;uniqueIndex" json:"run_id"`
	Task             string    `gorm:"type:text" json:"task"`
	Status           string    `gorm:"size:16;index" json:"status"`
	StopReason       string    `gorm:"size:32" json:"stop_reason"`
	Turns            int       `json:"turns"`
	InitialCode      string    `gorm:"type:text" json:"initial_code"`
	InitialCodeFound bool      `json:"initial_code_found"`
	ReviewFeedback   string    `gorm:"type:text" json:"review_feedback"`
	ReviewFound      bool      `json:"review_found"`
	FinalCode        string    `gorm:"type:text" json:"final_code"`
	FinalCodeFound   bool      `json:"final_code_found"`
	Transcript       string    `gorm:"type:text" json:"-"`
	ElapsedMS        int64     `json:"elapsed_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	Error            string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt        time.Time `gorm:"index" json:"started_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName 表名
func (RunRecord) TableName() string { return "workflow_runs" }

// Messages 解码记录中的对话
func (r *RunRecord) Messages() (types.Transcript, error) {
	if r.Transcript == "" {
		return nil, nil
	}
	var tr types.Transcript
	if err := json.Unmarshal([]byte(r.Transcript), &tr); err != nil {
		return nil, fmt.Errorf("decode transcript of run %s: %w", r.RunID, err)
	}
	return tr, nil
}

// Elapsed 运行耗时
func (r *RunRecord) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}

// ListOptions List 过滤条件
type ListOptions struct {
	Limit  int
	Status string
}

// Store 基于 GORM 的运行历史，实现 workflow.Archive
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ workflow.Archive = (*Store)(nil)

// NewStore 创建存储并迁移表结构
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "history"))}, nil
}

// SaveResult 保存成功运行
func (s *Store) SaveResult(ctx context.Context, result *workflow.WorkflowResult) error {
	transcript, err := encode(result.Transcript)
	if err != nil {
		return err
	}
	rec := &RunRecord{
		RunID:            result.RunID,
		Task:             result.OriginalTask,
		Status:           StatusCompleted,
		StopReason:       string(result.StopReason),
		Turns:            result.Turns,
		InitialCode:      result.InitialCode.Text,
		InitialCodeFound: result.InitialCode.Found,
		ReviewFeedback:   result.ReviewFeedback.Text,
		ReviewFound:      result.ReviewFeedback.Found,
		FinalCode:        result.FinalCode.Text,
		FinalCodeFound:   result.FinalCode.Found,
		Transcript:       transcript,
		ElapsedMS:        result.ExecutionTime.Milliseconds(),
		StartedAt:        result.StartedAt,
	}
	if result.TokenUsage != nil {
		setUsage(rec, *result.TokenUsage)
	}
	return s.create(ctx, rec)
}

// SaveFailure 保存失败运行，保留部分对话
func (s *Store) SaveFailure(ctx context.Context, failure *workflow.RunFailure) error {
	transcript, err := encode(failure.Transcript)
	if err != nil {
		return err
	}
	rec := &RunRecord{
		RunID:      failure.RunID,
		Task:       failure.Task,
		Status:     StatusFailed,
		StopReason: string(conversation.StopFailed),
		Turns:      failure.Transcript.Produced().Len(),
		Transcript: transcript,
		ElapsedMS:  failure.Elapsed.Milliseconds(),
		StartedAt:  failure.StartedAt,
	}
	var runErr *conversation.RunError
	if errors.As(failure.Err, &runErr) {
		rec.StopReason = string(runErr.Reason)
	}
	if failure.Err != nil {
		rec.Error = failure.Err.Error()
	}
	if usage, ok := failure.Transcript.Usage(); ok {
		setUsage(rec, usage)
	}
	return s.create(ctx, rec)
}

// Get 按运行 ID 查询
func (s *Store) Get(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &rec, nil
}

// List 按开始时间倒序列出运行记录
func (s *Store) List(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var records []RunRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// Prune 删除 before 之前开始的记录，返回删除条数
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("started_at < ?", before).Delete(&RunRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune runs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("pruned run history", zap.Int64("deleted", res.RowsAffected), zap.Time("before", before))
	}
	return res.RowsAffected, nil
}

func (s *Store) create(ctx context.Context, rec *RunRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	s.logger.Debug("run archived",
		zap.String("run_id", rec.RunID),
		zap.String("status", rec.Status),
		zap.Int("turns", rec.Turns))
	return nil
}

func encode(tr types.Transcript) (string, error) {
	b, err := json.Marshal(tr)
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	return string(b), nil
}

func setUsage(rec *RunRecord, u types.TokenUsage) {
	rec.PromptTokens = u.PromptTokens
	rec.CompletionTokens = u.CompletionTokens
	rec.TotalTokens = u.TotalTokens
	rec.Cost = u.Cost
}
