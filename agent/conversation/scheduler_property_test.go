package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pgregory.net/rapid"
)

// For any team size and cap N, a run whose replies never contain the
// sentinel produces exactly N messages in strictly cyclic order.
func TestProperty_MaxTurnsProducesExactlyN(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		teamSize := rapid.IntRange(1, 5).Draw(rt, "teamSize")
		limit := rapid.IntRange(1, 25).Draw(rt, "limit")

		team := make([]Participant, teamSize)
		for i := range team {
			team[i] = scripted{name: fmt.Sprintf("agent-%d", i), replies: func(turn int) string {
				return fmt.Sprintf("reply %d", turn)
			}}
		}

		rr, err := NewRoundRobin(team, Or(MaxTurns(limit), SentinelMatch("WORKFLOW_COMPLETE")))
		if err != nil {
			rt.Fatalf("construct: %v", err)
		}
		out, err := rr.Run(context.Background(), "task")
		if err != nil {
			rt.Fatalf("run: %v", err)
		}

		produced := out.Transcript.Produced()
		if len(produced) != limit || out.Turns != limit {
			rt.Fatalf("expected %d produced messages, got %d (turns=%d)", limit, len(produced), out.Turns)
		}
		for i, m := range produced {
			if want := team[i%teamSize].Name(); m.Source != want {
				rt.Fatalf("message %d from %s, want %s", i, m.Source, want)
			}
			if m.Index != i+1 {
				rt.Fatalf("message %d has index %d", i, m.Index)
			}
		}
	})
}

// For any k <= N, a sentinel first appearing in turn k ends the run at
// exactly k messages.
func TestProperty_SentinelStopsAtK(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("run stops exactly at the sentinel turn", prop.ForAll(
		func(teamSize, limit, k int) bool {
			if k > limit {
				k = limit
			}
			team := make([]Participant, teamSize)
			for i := range team {
				team[i] = scripted{name: fmt.Sprintf("agent-%d", i), replies: func(turn int) string {
					if turn == k {
						return "all good WORKFLOW_COMPLETE"
					}
					return "keep going"
				}}
			}

			rr, err := NewRoundRobin(team, Or(MaxTurns(limit), SentinelMatch("WORKFLOW_COMPLETE")))
			if err != nil {
				t.Logf("construct failed: %v", err)
				return false
			}
			out, err := rr.Run(context.Background(), "task")
			if err != nil {
				t.Logf("run failed: %v", err)
				return false
			}
			if out.Turns != k || len(out.Transcript.Produced()) != k {
				t.Logf("expected stop at %d, got %d", k, out.Turns)
				return false
			}
			return out.StopReason == StopSentinel || (k == limit && out.StopReason == StopMaxTurns)
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
