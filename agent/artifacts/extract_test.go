package artifacts

import (
	"strings"
	"testing"

	"github.com/BaSui01/codecrew/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func transcript(msgs ...types.Message) types.Transcript {
	tr := types.Transcript{}.Append(types.NewTaskMessage("Write a function"))
	for _, m := range msgs {
		tr = tr.Append(m)
	}
	return tr
}

func TestCodeBlocks(t *testing.T) {
	content := "Here:\n```python\ndef f():\n    return 1\n```\nand\n```\nplain\n```\n```go   \nx := 1\n```"
	blocks := CodeBlocks(content)
	require.Len(t, blocks, 3)
	assert.Equal(t, CodeBlock{Language: "python", Body: "def f():\n    return 1"}, blocks[0])
	assert.Equal(t, CodeBlock{Language: "", Body: "plain"}, blocks[1])
	assert.Equal(t, CodeBlock{Language: "go", Body: "x := 1"}, blocks[2])
}

func TestCodeBlocks_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []CodeBlock
	}{
		{"no fences", "just prose", nil},
		{"unclosed fence", "```go\nfunc main() {", nil},
		{"inline backticks", "use `x` and ```y```", nil},
		{"crlf", "```c++\r\nint x;\r\n```", []CodeBlock{{Language: "c++", Body: "int x;"}}},
		{"empty body", "```\n```", []CodeBlock{{Body: ""}}},
		{"tilde fence ignored", "~~~\ncode\n~~~", nil},
		{"backticks inside body", "```python\nFENCE = '```'\nprint(FENCE)\n```",
			[]CodeBlock{{Language: "python", Body: "FENCE = '```'\nprint(FENCE)"}}},
		{"closing fence mid-line", "```go\nx := 1```", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeBlocks(tt.content))
		})
	}
}

func TestExtractCode(t *testing.T) {
	tr := transcript(
		types.NewMessage("Writer", "```python\nv1 = 1\n```"),
		types.NewMessage("Reviewer", "```python\nnot mine\n```"),
		types.NewMessage("Writer", "two blocks\n```python\nv2 = 2\n```\n```python\nv3 = 3\n```"),
	)

	got := ExtractCode(tr, "Writer")
	assert.True(t, got.Found)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "v1 = 1\n\nv2 = 2\n\nv3 = 3", got.Text)
	assert.Equal(t, got.Text, got.String())
}

func TestExtractCode_Absent(t *testing.T) {
	tr := transcript(
		types.NewMessage("Writer", "I have no code for you"),
		types.NewMessage("Reviewer", "```go\nx\n```"),
	)

	for _, agent := range []string{"Writer", "Optimizer"} {
		got := ExtractCode(tr, agent)
		assert.False(t, got.Found)
		assert.Equal(t, NoCodeFound, got.Text)
		assert.NotEmpty(t, got.Text)
		assert.Zero(t, got.Count)
	}
}

func TestExtractReview(t *testing.T) {
	tr := transcript(
		types.NewMessage("Writer", "code"),
		types.NewMessage("Reviewer", "first review"),
		types.NewMessage("Optimizer", "better code"),
		types.NewMessage("Reviewer", "second review\n```go\nsnippet\n```"),
	)

	got := ExtractReview(tr, "Reviewer")
	assert.True(t, got.Found)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "first review\n\nsecond review\n```go\nsnippet\n```", got.Text)

	absent := ExtractReview(tr, "Nobody")
	assert.False(t, absent.Found)
	assert.Equal(t, NoReviewFound, absent.Text)
}

func TestExtract_DoesNotMutateTranscript(t *testing.T) {
	tr := transcript(
		types.NewMessage("Writer", "```go\nx\n```"),
		types.NewMessage("Reviewer", "ok"),
	)
	before := tr.Clone()

	_ = ExtractCode(tr, "Writer")
	_ = ExtractReview(tr, "Reviewer")
	assert.Equal(t, before, tr)
}

func genTranscript(rt *rapid.T) types.Transcript {
	agents := []string{"Writer", "Reviewer", "Optimizer"}
	n := rapid.IntRange(0, 12).Draw(rt, "messages")
	tr := types.Transcript{}.Append(types.NewTaskMessage("task"))
	for i := 0; i < n; i++ {
		source := rapid.SampledFrom(agents).Draw(rt, "source")
		body := rapid.StringMatching("[a-z =;]{0,20}").Draw(rt, "body")
		content := body
		if rapid.Bool().Draw(rt, "fenced") {
			content = "text\n```go\n" + body + "\n```\nmore"
		}
		tr = tr.Append(types.NewMessage(source, content))
	}
	return tr
}

func TestProperty_ExtractIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := genTranscript(rt)
		agent := rapid.SampledFrom([]string{"Writer", "Reviewer", "Optimizer", "Nobody"}).Draw(rt, "agent")

		if a, b := ExtractCode(tr, agent), ExtractCode(tr, agent); a != b {
			rt.Fatalf("ExtractCode not idempotent: %q vs %q", a.Text, b.Text)
		}
		if a, b := ExtractReview(tr, agent), ExtractReview(tr, agent); a != b {
			rt.Fatalf("ExtractReview not idempotent: %q vs %q", a.Text, b.Text)
		}
	})
}

// Review concatenation keeps every message of the agent exactly once, in order.
func TestProperty_ReviewPreservesOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := genTranscript(rt)
		got := ExtractReview(tr, "Reviewer")

		from := tr.From("Reviewer")
		if len(from) == 0 {
			if got.Found || got.Text != NoReviewFound {
				rt.Fatalf("expected absent review, got %+v", got)
			}
			return
		}
		if got.Count != len(from) {
			rt.Fatalf("count %d, want %d", got.Count, len(from))
		}
		rest := got.Text
		for i, m := range from {
			if !strings.HasPrefix(rest, m.Content) {
				rt.Fatalf("message %d out of order", i)
			}
			rest = strings.TrimPrefix(rest, m.Content)
			if i < len(from)-1 {
				if !strings.HasPrefix(rest, separator) {
					rt.Fatalf("missing separator after message %d", i)
				}
				rest = strings.TrimPrefix(rest, separator)
			}
		}
		if rest != "" {
			rt.Fatalf("unexpected trailing text %q", rest)
		}
	})
}
