package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimatorTokenizer_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("gpt-4")

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = e.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.CountTokens("你好世界")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEstimatorTokenizer_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("gpt-4")
	n, err := e.CountMessages([]Message{
		{Role: "system", Content: "abcdefgh"},
		{Role: "user", Content: "abcd"},
	})
	require.NoError(t, err)
	// (2+4) + (1+4) + 3
	assert.Equal(t, 14, n)
}

func TestEstimateUsage(t *testing.T) {
	e := NewEstimatorTokenizer("gpt-4")
	usage, err := EstimateUsage(e, []Message{{Role: "user", Content: "abcd"}}, "abcdefgh")
	require.NoError(t, err)

	assert.True(t, usage.Estimated)
	assert.Equal(t, 8, usage.PromptTokens)
	assert.Equal(t, 2, usage.CompletionTokens)
	assert.Equal(t, 10, usage.TotalTokens)
}

func TestNewTiktokenTokenizer_Encoding(t *testing.T) {
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenTokenizer("gpt-4").Name())
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenTokenizer("gpt-4o-2024-08-06").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenTokenizer("some-local-model").Name())
}

func TestTiktokenTokenizer_Counts(t *testing.T) {
	tk := NewTiktokenTokenizer("gpt-4")
	if err := tk.init(); err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	n, err := tk.CountTokens("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := tk.CountMessages([]Message{{Role: "user", Content: "hello world"}})
	require.NoError(t, err)
	assert.Greater(t, total, n)
}

func TestForModel_ReturnsUsableTokenizer(t *testing.T) {
	tk := ForModel("gpt-4")
	n, err := tk.CountTokens("func main() {}")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

// 属性：估算值单调，拼接文本的计数不小于任一部分
func TestProperty_EstimatorMonotonic(t *testing.T) {
	e := NewEstimatorTokenizer("gpt-4")
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.String().Draw(rt, "a")
		b := rapid.String().Draw(rt, "b")

		na, _ := e.CountTokens(a)
		nab, _ := e.CountTokens(a + b)
		if nab < na {
			rt.Fatalf("count(%q)=%d < count(%q)=%d", a+b, nab, a, na)
		}
	})
}
