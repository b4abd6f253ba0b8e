// ScriptedProvider 是补全服务的测试模拟实现。
//
// 按顺序回放预设的响应或错误，支持延迟注入、自定义函数与调用记录。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/codecrew/llm"
)

// --- ScriptedProvider 结构 ---

type step struct {
	content string
	err     error
}

// ScriptedProvider 是 llm.Provider 的脚本化模拟实现
type ScriptedProvider struct {
	mu sync.Mutex

	steps        []step
	defaultReply string
	fn           func(call int, req *llm.ChatRequest) (*llm.ChatResponse, error)
	usage        llm.ChatUsage
	delay        time.Duration
	name         string

	requests []*llm.ChatRequest
	closed   bool
}

var _ llm.Provider = (*ScriptedProvider)(nil)

// NewScriptedProvider 创建新的 ScriptedProvider
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		defaultReply: "Mock response",
		name:         "mock",
		usage:        llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// --- Builder 方法 ---

// ThenReply 追加一次成功响应
func (m *ScriptedProvider) ThenReply(content string) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{content: content})
	return m
}

// ThenError 追加一次失败
func (m *ScriptedProvider) ThenError(err error) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{err: err})
	return m
}

// WithDefaultReply 设置脚本耗尽后的响应内容
func (m *ScriptedProvider) WithDefaultReply(content string) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultReply = content
	return m
}

// WithFunc 设置脚本耗尽后的自定义响应函数，call 从 0 开始计数
func (m *ScriptedProvider) WithFunc(fn func(call int, req *llm.ChatRequest) (*llm.ChatResponse, error)) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithUsage 设置每次响应报告的 Token 用量
func (m *ScriptedProvider) WithUsage(prompt, completion int) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = llm.ChatUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return m
}

// WithDelay 设置响应延迟
func (m *ScriptedProvider) WithDelay(d time.Duration) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithName 设置 Provider 名称
func (m *ScriptedProvider) WithName(name string) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// --- Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *ScriptedProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Completion 按脚本返回下一次响应
func (m *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	call := len(m.requests)
	m.requests = append(m.requests, req)
	delay := m.delay
	var (
		current *step
		fn      = m.fn
		reply   = m.defaultReply
		usage   = m.usage
	)
	if call < len(m.steps) {
		s := m.steps[call]
		current = &s
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &llm.Error{Code: llm.ErrUpstreamTimeout, Message: ctx.Err().Error(), Retryable: true, Provider: "mock"}
		case <-timer.C:
		}
	}

	switch {
	case current != nil && current.err != nil:
		return nil, current.err
	case current != nil:
		return Reply(current.content, usage), nil
	case fn != nil:
		return fn(call, req)
	default:
		return Reply(reply, usage), nil
	}
}

// Close 记录关闭
func (m *ScriptedProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// --- 调用记录 ---

// CallCount 返回 Completion 调用次数
func (m *ScriptedProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests 返回所有收到的请求
func (m *ScriptedProvider) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.requests...)
}

// Closed 返回是否已关闭
func (m *ScriptedProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reply 构造单 choice 的响应
func Reply(content string, usage llm.ChatUsage) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "mock-resp",
		Provider: "mock",
		Model:    "mock-model",
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		Usage:     usage,
		CreatedAt: time.Now(),
	}
}
