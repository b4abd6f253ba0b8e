package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	u := TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, Cost: 0.5}
	u.Add(TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 5, Cost: 1.25})

	assert.Equal(t, TokenUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 8, Cost: 1.75}, u)

	u.Add(TokenUsage{TotalTokens: 1, Estimated: true})
	assert.True(t, u.Estimated)
	u.Add(TokenUsage{TotalTokens: 1})
	assert.True(t, u.Estimated, "estimated is sticky once any part was estimated")
}

func TestTokenUsage_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, TokenUsage{}.IsZero())
	assert.True(t, TokenUsage{Estimated: true}.IsZero())
	assert.False(t, TokenUsage{CompletionTokens: 1}.IsZero())
}
