// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 对话记录构造、上下文与异步断言
//
// 使用方法:
//
//	tr := testutil.Transcript("task", "CodeWriter", "draft", "CodeReviewer", "ok")
//	testutil.AssertSources(t, tr, "CodeWriter", "CodeReviewer")
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/codecrew/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 📜 对话记录
// =============================================================================

// Transcript 以任务消息开头构造对话记录，pairs 依次为 source, content
func Transcript(task string, pairs ...string) types.Transcript {
	if len(pairs)%2 != 0 {
		panic("testutil.Transcript: pairs must be source/content pairs")
	}
	tr := types.Transcript{}.Append(types.NewTaskMessage(task))
	for i := 0; i < len(pairs); i += 2 {
		tr = tr.Append(types.NewMessage(pairs[i], pairs[i+1]))
	}
	return tr
}

// Sources 返回 Agent 产出消息的来源序列
func Sources(tr types.Transcript) []string {
	out := make([]string, 0, tr.Len())
	for _, m := range tr.Produced() {
		out = append(out, m.Source)
	}
	return out
}

// AssertSources 断言产出消息的来源序列
func AssertSources(t *testing.T, tr types.Transcript, want ...string) {
	t.Helper()
	got := Sources(tr)
	if len(got) != len(want) {
		t.Errorf("source count mismatch: expected %d %v, got %d %v", len(want), want, len(got), got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] source mismatch: expected %q, got %q", i+1, want[i], got[i])
		}
	}
}

// AssertIndexed 断言每条消息的 Index 等于其位置
func AssertIndexed(t *testing.T, tr types.Transcript) {
	t.Helper()
	for i, m := range tr {
		if m.Index != i {
			t.Errorf("message[%d] has index %d", i, m.Index)
		}
	}
}

// =============================================================================
// ⏳ 异步断言
// =============================================================================

// AssertEventuallyTrue 在超时前轮询直到条件满足
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition not met within %s", timeout)
	}
}

// WaitFor 轮询等待条件满足
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}
