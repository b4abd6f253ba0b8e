package artifacts

import (
	"regexp"
	"strings"

	"github.com/BaSui01/codecrew/types"
)

// Values reported when nothing matched. Callers should test Found rather
// than compare text.
const (
	NoCodeFound   = "No code found"
	NoReviewFound = "No review found"
)

const separator = "\n\n"

// fencePattern matches a triple-backtick block with an optional language
// tag on the opening line. The closing fence must start a line, so backticks
// inside the body do not end the block. Unclosed fences do not match.
var fencePattern = regexp.MustCompile("(?s)```([\\w+#.-]*)[ \\t]*\\r?\\n(?:(.*?)\\r?\\n)?```")

// Artifact is a typed value pulled from a transcript.
type Artifact struct {
	Text  string `json:"text"`
	Found bool   `json:"found"`
	// Count is the number of fenced blocks (code) or messages (review) joined into Text.
	Count int `json:"count"`
}

func (a Artifact) String() string { return a.Text }

// CodeBlock is one fenced region of a message.
type CodeBlock struct {
	Language string
	Body     string
}

// CodeBlocks returns the fenced regions of content in order of appearance.
func CodeBlocks(content string) []CodeBlock {
	matches := fencePattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]CodeBlock, len(matches))
	for i, m := range matches {
		blocks[i] = CodeBlock{Language: m[1], Body: m[2]}
	}
	return blocks
}

// ExtractCode joins the bodies of every fenced block in messages from
// agent, in transcript order, separated by a blank line.
func ExtractCode(transcript types.Transcript, agent string) Artifact {
	var bodies []string
	for _, m := range transcript {
		if m.Source != agent {
			continue
		}
		for _, b := range CodeBlocks(m.Content) {
			bodies = append(bodies, b.Body)
		}
	}
	if len(bodies) == 0 {
		return Artifact{Text: NoCodeFound}
	}
	return Artifact{Text: strings.Join(bodies, separator), Found: true, Count: len(bodies)}
}

// ExtractReview joins the full content of every message from agent, in
// transcript order, separated by a blank line.
func ExtractReview(transcript types.Transcript, agent string) Artifact {
	var parts []string
	for _, m := range transcript {
		if m.Source == agent {
			parts = append(parts, m.Content)
		}
	}
	if len(parts) == 0 {
		return Artifact{Text: NoReviewFound}
	}
	return Artifact{Text: strings.Join(parts, separator), Found: true, Count: len(parts)}
}
