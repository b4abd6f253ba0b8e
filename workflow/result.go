package workflow

import (
	"fmt"
	"time"

	"github.com/BaSui01/codecrew/agent/artifacts"
	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/types"
)

// WorkflowResult 一次成功运行的结果，构造后不再修改
type WorkflowResult struct {
	RunID          string                  `json:"run_id"`
	OriginalTask   string                  `json:"original_task"`
	InitialCode    artifacts.Artifact      `json:"initial_code"`
	ReviewFeedback artifacts.Artifact      `json:"review_feedback"`
	FinalCode      artifacts.Artifact      `json:"final_code"`
	Transcript     types.Transcript        `json:"transcript"`
	Turns          int                     `json:"turns"`
	StopReason     conversation.StopReason `json:"stop_reason"`
	ExecutionTime  time.Duration           `json:"execution_time"`
	StartedAt      time.Time               `json:"started_at"`
	TokenUsage     *types.TokenUsage       `json:"token_usage,omitempty"`
}

// ResultStats 结果摘要指标
type ResultStats struct {
	MessageCount     int            `json:"message_count"`
	CodeLength       int            `json:"code_length"`
	CodeBlocks       int            `json:"code_blocks"`
	MessagesByAgent  map[string]int `json:"messages_by_agent"`
	ExecutionSeconds float64        `json:"execution_seconds"`
}

// Stats 计算结果摘要。CodeLength 为最终代码的字符数，未提取到代码时为 0。
func (r *WorkflowResult) Stats() ResultStats {
	stats := ResultStats{
		MessageCount:     r.Transcript.Len(),
		MessagesByAgent:  make(map[string]int),
		ExecutionSeconds: r.ExecutionTime.Seconds(),
	}
	if r.FinalCode.Found {
		stats.CodeLength = len([]rune(r.FinalCode.Text))
		stats.CodeBlocks = r.FinalCode.Count
	}
	for _, m := range r.Transcript.Produced() {
		stats.MessagesByAgent[m.Source]++
	}
	return stats
}

// RunFailure 运行失败。Err 为调度器返回的错误，通常是 *conversation.RunError。
type RunFailure struct {
	RunID      string           `json:"run_id"`
	Task       string           `json:"task"`
	Err        error            `json:"-"`
	Transcript types.Transcript `json:"transcript"`
	Elapsed    time.Duration    `json:"elapsed"`
	StartedAt  time.Time        `json:"started_at"`
}

func (f *RunFailure) Error() string {
	return fmt.Sprintf("workflow run %s failed after %s: %v", f.RunID, f.Elapsed.Round(time.Millisecond), f.Err)
}

func (f *RunFailure) Unwrap() error { return f.Err }
