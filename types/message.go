package types

import (
	"time"

	"github.com/google/uuid"
)

// SourceTask is the source of the synthetic message that seeds every transcript.
const SourceTask = "task"

// Message is one entry of a conversation timeline.
// Messages are values; once appended to a Transcript they are never modified.
type Message struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Content   string      `json:"content"`
	Index     int         `json:"index"`
	Timestamp time.Time   `json:"timestamp"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// NewMessage creates a message with a fresh ID and the current time.
// Index is assigned when the message is appended to a transcript.
func NewMessage(source, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Source:    source,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewTaskMessage creates the seed message carrying the task description.
func NewTaskMessage(task string) Message {
	return NewMessage(SourceTask, task)
}

// WithUsage attaches token usage to the message.
func (m Message) WithUsage(usage TokenUsage) Message {
	m.Usage = &usage
	return m
}

// IsTask reports whether the message is the synthetic task seed.
func (m Message) IsTask() bool {
	return m.Source == SourceTask
}
