package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendAssignsIndex(t *testing.T) {
	var tr Transcript
	tr = tr.Append(NewTaskMessage("write fib"))
	tr = tr.Append(NewMessage("A", "one"))
	tr = tr.Append(NewMessage("B", "two"))

	require.Equal(t, 3, tr.Len())
	for i, m := range tr {
		assert.Equal(t, i, m.Index)
	}
	assert.Equal(t, "write fib", tr.Task())
	assert.Len(t, tr.Produced(), 2)
	assert.Equal(t, "A", tr.Produced()[0].Source)

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "two", last.Content)
}

func TestTranscript_CloneIsIndependent(t *testing.T) {
	tr := Transcript{}.Append(NewTaskMessage("t")).Append(NewMessage("A", "x"))
	cp := tr.Clone()
	cp[1].Content = "changed"
	assert.Equal(t, "x", tr[1].Content)

	var empty Transcript
	assert.Nil(t, empty.Clone())
	_, ok := empty.Last()
	assert.False(t, ok)
}

func TestTranscript_FromAndUsage(t *testing.T) {
	tr := Transcript{}.
		Append(NewTaskMessage("t")).
		Append(NewMessage("A", "a1").WithUsage(TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})).
		Append(NewMessage("B", "b1")).
		Append(NewMessage("A", "a2").WithUsage(TokenUsage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27}))

	fromA := tr.From("A")
	require.Len(t, fromA, 2)
	assert.Equal(t, []string{"a1", "a2"}, []string{fromA[0].Content, fromA[1].Content})

	usage, ok := tr.Usage()
	require.True(t, ok)
	assert.Equal(t, 30, usage.PromptTokens)
	assert.Equal(t, 42, usage.TotalTokens)

	_, ok = Transcript{}.Append(NewTaskMessage("t")).Usage()
	assert.False(t, ok)
}
