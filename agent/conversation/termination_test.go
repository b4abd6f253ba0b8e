package conversation

import (
	"testing"

	"github.com/BaSui01/codecrew/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptOf(task string, msgs ...types.Message) types.Transcript {
	tr := types.Transcript{}.Append(types.NewTaskMessage(task))
	for _, m := range msgs {
		tr = tr.Append(m)
	}
	return tr
}

func TestMaxTurns_Evaluate(t *testing.T) {
	term := MaxTurns(3)
	tr := transcriptOf("task")

	stop, reason := term.Evaluate(tr, 2)
	assert.False(t, stop)
	assert.Equal(t, StopNone, reason)

	stop, reason = term.Evaluate(tr, 3)
	assert.True(t, stop)
	assert.Equal(t, StopMaxTurns, reason)

	stop, _ = term.Evaluate(tr, 4)
	assert.True(t, stop)
}

func TestSentinelMatch_Evaluate(t *testing.T) {
	term := SentinelMatch("WORKFLOW_COMPLETE")

	tests := []struct {
		name string
		tr   types.Transcript
		want bool
	}{
		{"seed only", transcriptOf("please reply WORKFLOW_COMPLETE"), false},
		{"substring in latest", transcriptOf("t", types.NewMessage("A", "done. WORKFLOW_COMPLETE!")), true},
		{"case sensitive", transcriptOf("t", types.NewMessage("A", "workflow_complete")), false},
		{"only latest message counts", transcriptOf("t",
			types.NewMessage("A", "WORKFLOW_COMPLETE"),
			types.NewMessage("B", "not yet"),
		), false},
		{"empty transcript", types.Transcript{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, reason := term.Evaluate(tt.tr, 1)
			assert.Equal(t, tt.want, stop)
			if tt.want {
				assert.Equal(t, StopSentinel, reason)
			}
		})
	}
}

func TestSentinelMatch_PolicySources(t *testing.T) {
	term := SentinelMatchWithPolicy("DONE", SentinelPolicy{Sources: []string{"Optimizer"}})

	stop, _ := term.Evaluate(transcriptOf("t", types.NewMessage("Writer", "DONE")), 1)
	assert.False(t, stop)

	stop, reason := term.Evaluate(transcriptOf("t", types.NewMessage("Optimizer", "DONE")), 1)
	assert.True(t, stop)
	assert.Equal(t, StopSentinel, reason)
}

func TestOr_FirstSatisfiedOperandWins(t *testing.T) {
	tr := transcriptOf("t", types.NewMessage("A", "STOP"))

	stop, reason := Or(MaxTurns(1), SentinelMatch("STOP")).Evaluate(tr, 1)
	assert.True(t, stop)
	assert.Equal(t, StopMaxTurns, reason)

	stop, reason = Or(SentinelMatch("STOP"), MaxTurns(1)).Evaluate(tr, 1)
	assert.True(t, stop)
	assert.Equal(t, StopSentinel, reason)

	stop, _ = Or(MaxTurns(5), SentinelMatch("nope")).Evaluate(tr, 1)
	assert.False(t, stop)
}

func TestTermination_EvaluateIsPure(t *testing.T) {
	term := Or(MaxTurns(2), SentinelMatch("X"))
	tr := transcriptOf("t", types.NewMessage("A", "hello"))
	before := tr.Clone()

	for i := 0; i < 3; i++ {
		stop, _ := term.Evaluate(tr, 1)
		assert.False(t, stop)
	}
	assert.Equal(t, before, tr)
}

func TestTermination_Validate(t *testing.T) {
	tests := []struct {
		name    string
		term    Termination
		wantErr bool
	}{
		{"max turns ok", MaxTurns(1), false},
		{"max turns zero", MaxTurns(0), true},
		{"max turns negative", MaxTurns(-3), true},
		{"empty sentinel", SentinelMatch(""), true},
		{"or ok", Or(MaxTurns(10), SentinelMatch("DONE")), false},
		{"or with bad operand", Or(SentinelMatch("DONE"), MaxTurns(0)), true},
		{"zero value", Termination{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.term.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var ce *types.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
		})
	}
}

func TestTermination_MaxTurnLimitAndString(t *testing.T) {
	term := Or(SentinelMatch("DONE"), MaxTurns(10), MaxTurns(4))
	assert.Equal(t, 4, term.MaxTurnLimit())
	assert.Equal(t, 0, SentinelMatch("DONE").MaxTurnLimit())
	assert.Equal(t, `SentinelMatch("DONE") | MaxTurns(10) | MaxTurns(4)`, term.String())
}
