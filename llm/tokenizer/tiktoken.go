package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系列模型提供精确计数
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// 模型前缀到 tiktoken 编码的映射，按前缀长度从长到短匹配
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{prefix: "gpt-4o-mini", encoding: "o200k_base"},
	{prefix: "gpt-4o", encoding: "o200k_base"},
	{prefix: "gpt-4-turbo", encoding: "cl100k_base"},
	{prefix: "gpt-4", encoding: "cl100k_base"},
	{prefix: "gpt-3.5-turbo", encoding: "cl100k_base"},
}

// NewTiktokenTokenizer 创建基于 tiktoken 的分词器，未知模型使用 cl100k_base
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			encoding = m.encoding
			break
		}
	}
	return &TiktokenTokenizer{model: model, encoding: encoding}
}

// init 延迟加载编码表（首次使用时可能需要下载）
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	total += 3
	return total, nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
