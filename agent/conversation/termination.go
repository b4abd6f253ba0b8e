package conversation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/codecrew/types"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopNone      StopReason = ""
	StopMaxTurns  StopReason = "max_turns"
	StopSentinel  StopReason = "sentinel"
	StopFailed    StopReason = "generation_failed"
	StopCancelled StopReason = "cancelled"
)

type terminationKind int

const (
	kindInvalid terminationKind = iota
	kindMaxTurns
	kindSentinel
	kindOr
)

// SentinelPolicy narrows which messages can trigger a sentinel match.
type SentinelPolicy struct {
	// Sources lists the agents whose messages are inspected. Empty means any agent.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Termination is a composable stop condition. It is a plain value: build it
// with MaxTurns, SentinelMatch or Or and evaluate it with Evaluate.
type Termination struct {
	kind     terminationKind
	limit    int
	sentinel string
	policy   SentinelPolicy
	operands []Termination
}

// MaxTurns stops once n messages have been produced.
func MaxTurns(n int) Termination {
	return Termination{kind: kindMaxTurns, limit: n}
}

// SentinelMatch stops when the latest message contains sentinel
// (case-sensitive substring).
func SentinelMatch(sentinel string) Termination {
	return Termination{kind: kindSentinel, sentinel: sentinel}
}

// SentinelMatchWithPolicy is SentinelMatch restricted by policy.
func SentinelMatchWithPolicy(sentinel string, policy SentinelPolicy) Termination {
	return Termination{kind: kindSentinel, sentinel: sentinel, policy: policy}
}

// Or stops on the first satisfied operand, in argument order.
func Or(first Termination, rest ...Termination) Termination {
	operands := make([]Termination, 0, len(rest)+1)
	operands = append(operands, first)
	operands = append(operands, rest...)
	return Termination{kind: kindOr, operands: operands}
}

// Evaluate reports whether the run should stop after turns produced
// messages, given the transcript including the latest message.
// It has no side effects.
func (t Termination) Evaluate(transcript types.Transcript, turns int) (bool, StopReason) {
	switch t.kind {
	case kindMaxTurns:
		if turns >= t.limit {
			return true, StopMaxTurns
		}
	case kindSentinel:
		last, ok := transcript.Last()
		if !ok || last.IsTask() {
			return false, StopNone
		}
		if len(t.policy.Sources) > 0 && !slices.Contains(t.policy.Sources, last.Source) {
			return false, StopNone
		}
		if strings.Contains(last.Content, t.sentinel) {
			return true, StopSentinel
		}
	case kindOr:
		for _, op := range t.operands {
			if stop, reason := op.Evaluate(transcript, turns); stop {
				return true, reason
			}
		}
	}
	return false, StopNone
}

// Validate rejects conditions that could never be satisfied or are malformed.
func (t Termination) Validate() error {
	switch t.kind {
	case kindMaxTurns:
		if t.limit <= 0 {
			return types.NewConfigurationError("termination.max_turns", fmt.Sprintf("must be positive, got %d", t.limit))
		}
	case kindSentinel:
		if t.sentinel == "" {
			return types.NewConfigurationError("termination.sentinel", "must not be empty")
		}
	case kindOr:
		if len(t.operands) == 0 {
			return types.NewConfigurationError("termination", "or requires at least one operand")
		}
		for _, op := range t.operands {
			if err := op.Validate(); err != nil {
				return err
			}
		}
	default:
		return types.NewConfigurationError("termination", "no condition configured")
	}
	return nil
}

// MaxTurnLimit returns the smallest turn cap in t, or 0 when t has none.
func (t Termination) MaxTurnLimit() int {
	switch t.kind {
	case kindMaxTurns:
		return t.limit
	case kindOr:
		limit := 0
		for _, op := range t.operands {
			if l := op.MaxTurnLimit(); l > 0 && (limit == 0 || l < limit) {
				limit = l
			}
		}
		return limit
	}
	return 0
}

func (t Termination) String() string {
	switch t.kind {
	case kindMaxTurns:
		return fmt.Sprintf("MaxTurns(%d)", t.limit)
	case kindSentinel:
		if len(t.policy.Sources) > 0 {
			return fmt.Sprintf("SentinelMatch(%q from %s)", t.sentinel, strings.Join(t.policy.Sources, ","))
		}
		return fmt.Sprintf("SentinelMatch(%q)", t.sentinel)
	case kindOr:
		parts := make([]string, len(t.operands))
		for i, op := range t.operands {
			parts[i] = op.String()
		}
		return strings.Join(parts, " | ")
	}
	return "Invalid"
}
