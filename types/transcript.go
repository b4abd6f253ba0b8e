package types

// Transcript is the ordered message history of one workflow run.
// Order equals production order; entries are never reordered or deduplicated.
type Transcript []Message

// Append returns the transcript with msg added at the end.
// The message's Index is set to its position.
func (t Transcript) Append(msg Message) Transcript {
	msg.Index = len(t)
	return append(t, msg)
}

// Clone returns an independent copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Len returns the number of messages, including the task seed.
func (t Transcript) Len() int { return len(t) }

// Last returns the most recently appended message.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// Task returns the content of the seed message, if present.
func (t Transcript) Task() string {
	if len(t) > 0 && t[0].IsTask() {
		return t[0].Content
	}
	return ""
}

// Produced returns the messages produced by agents, i.e. everything except
// the leading task seed.
func (t Transcript) Produced() Transcript {
	if len(t) > 0 && t[0].IsTask() {
		return t[1:]
	}
	return t
}

// From returns the messages whose source equals name, in order.
func (t Transcript) From(name string) Transcript {
	var out Transcript
	for _, m := range t {
		if m.Source == name {
			out = append(out, m)
		}
	}
	return out
}

// Usage sums the token usage reported on each message.
func (t Transcript) Usage() (TokenUsage, bool) {
	var total TokenUsage
	found := false
	for _, m := range t {
		if m.Usage == nil {
			continue
		}
		total.Add(*m.Usage)
		found = true
	}
	return total, found
}
