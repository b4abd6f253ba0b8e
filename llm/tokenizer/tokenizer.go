package tokenizer

import (
	"github.com/BaSui01/codecrew/types"
)

// Tokenizer 统一的 Token 计数接口
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，包含每条消息的角色与分隔符开销
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器名称
	Name() string
}

// Message 是 tokenizer 包使用的轻量消息结构，避免依赖 llm 包
type Message struct {
	Role    string
	Content string
}

// ForModel 返回模型对应的分词器。
// tiktoken 编码表无法加载时（例如离线环境）回退到估算器。
func ForModel(model string) Tokenizer {
	t := NewTiktokenTokenizer(model)
	if err := t.init(); err != nil {
		return NewEstimatorTokenizer(model)
	}
	return t
}

// EstimateUsage 在服务端未报告用量时估算一次补全的 Token 用量。
// 返回值的 Estimated 恒为 true。
func EstimateUsage(t Tokenizer, prompt []Message, completion string) (types.TokenUsage, error) {
	promptTokens, err := t.CountMessages(prompt)
	if err != nil {
		return types.TokenUsage{}, err
	}
	completionTokens, err := t.CountTokens(completion)
	if err != nil {
		return types.TokenUsage{}, err
	}
	return types.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}, nil
}
