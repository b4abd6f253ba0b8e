package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/codecrew/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/codecrew/agent/conversation"

// State is the lifecycle state of a RoundRobin.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TurnObserver is called after each message is appended, in transcript order.
type TurnObserver func(msg types.Message)

// TurnRecorder receives per-turn measurements. err is nil on success.
type TurnRecorder interface {
	RecordTurn(agent string, duration time.Duration, err error)
}

// RunOutcome is the result of a completed run.
type RunOutcome struct {
	Transcript types.Transcript `json:"transcript"`
	Turns      int              `json:"turns"`
	StopReason StopReason       `json:"stop_reason"`
	LastAgent  string           `json:"last_agent"`
	Duration   time.Duration    `json:"duration"`
}

// RunError is returned when a run ends in StateFailed. It keeps the partial
// transcript so the failure can be analysed without re-running.
type RunError struct {
	Reason StopReason
	Cause  error
	// LastTurn is the number of messages produced before the failure.
	LastTurn int
	// LastAgent is the agent that produced the last appended message, empty
	// if no agent completed a turn.
	LastAgent  string
	Transcript types.Transcript
}

func (e *RunError) Error() string {
	return fmt.Sprintf("conversation %s after %d turns: %v", e.Reason, e.LastTurn, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }

// Option configures a RoundRobin.
type Option func(*RoundRobin)

// WithLogger sets the scheduler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *RoundRobin) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a hook called after every appended message.
func WithObserver(observer TurnObserver) Option {
	return func(r *RoundRobin) { r.observer = observer }
}

// WithRecorder registers a per-turn measurement sink.
func WithRecorder(recorder TurnRecorder) Option {
	return func(r *RoundRobin) { r.recorder = recorder }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *RoundRobin) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// RoundRobin drives participants in fixed cyclic order until the
// termination condition is met, a participant fails, or the context is
// cancelled. An instance runs exactly once.
type RoundRobin struct {
	participants []Participant
	termination  Termination
	logger       *zap.Logger
	observer     TurnObserver
	recorder     TurnRecorder
	tracer       trace.Tracer

	mu         sync.RWMutex
	state      State
	transcript types.Transcript
}

// NewRoundRobin validates the team and termination condition. The condition
// must include a MaxTurns cap. All problems are reported as *types.ConfigurationError before any turn runs.
func NewRoundRobin(participants []Participant, termination Termination, opts ...Option) (*RoundRobin, error) {
	if len(participants) == 0 {
		return nil, types.NewConfigurationError("participants", "at least one agent is required")
	}
	seen := make(map[string]struct{}, len(participants))
	for i, p := range participants {
		if p == nil {
			return nil, types.NewConfigurationError(fmt.Sprintf("participants[%d]", i), "must not be nil")
		}
		name := p.Name()
		if name == "" {
			return nil, types.NewConfigurationError(fmt.Sprintf("participants[%d].name", i), "must not be empty")
		}
		if name == types.SourceTask {
			return nil, types.NewConfigurationError(fmt.Sprintf("participants[%d].name", i), "\""+types.SourceTask+"\" is reserved")
		}
		if _, dup := seen[name]; dup {
			return nil, types.NewConfigurationError(fmt.Sprintf("participants[%d].name", i), "duplicate agent name "+name)
		}
		seen[name] = struct{}{}
	}
	if err := termination.Validate(); err != nil {
		return nil, err
	}
	if termination.MaxTurnLimit() == 0 {
		return nil, types.NewConfigurationError("termination", "a MaxTurns cap is required so the run is bounded")
	}

	r := &RoundRobin{
		participants: append([]Participant(nil), participants...),
		termination:  termination,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "round_robin"))
	return r, nil
}

// State returns the current lifecycle state.
func (r *RoundRobin) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Transcript returns a copy of the transcript so far.
func (r *RoundRobin) Transcript() types.Transcript {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transcript.Clone()
}

// Run seeds the transcript with task and drives turns until termination.
//
// Cancellation of ctx is honored only between turns: a turn in flight runs
// to completion (bounded by the agent's own turn timeout) and its message is
// appended before the cancellation takes effect.
func (r *RoundRobin) Run(ctx context.Context, task string) (*RunOutcome, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		state := r.state
		r.mu.Unlock()
		return nil, types.NewError(types.ErrInvalidTransition, "round robin already "+state.String())
	}
	r.state = StateRunning
	r.transcript = types.Transcript{}.Append(types.NewTaskMessage(task))
	r.mu.Unlock()

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "conversation.run",
		trace.WithAttributes(
			attribute.Int("conversation.participants", len(r.participants)),
			attribute.String("conversation.termination", r.termination.String()),
		))
	defer span.End()

	r.logger.Info("conversation started",
		zap.Int("participants", len(r.participants)),
		zap.String("termination", r.termination.String()))

	var (
		turns     int
		lastAgent string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(span, &RunError{
				Reason:    StopCancelled,
				Cause:     &types.CancelledError{Turn: turns, Cause: err},
				LastTurn:  turns,
				LastAgent: lastAgent,
			})
		}

		p := r.participants[turns%len(r.participants)]
		msg, err := r.turn(ctx, p, turns)
		if err != nil {
			return nil, r.fail(span, &RunError{
				Reason:    StopFailed,
				Cause:     err,
				LastTurn:  turns,
				LastAgent: lastAgent,
			})
		}

		r.mu.Lock()
		r.transcript = r.transcript.Append(msg)
		transcript := r.transcript
		r.mu.Unlock()

		turns++
		lastAgent = p.Name()
		if r.observer != nil {
			r.observer(transcript[len(transcript)-1])
		}

		if stop, reason := r.termination.Evaluate(transcript, turns); stop {
			r.setState(StateCompleted)
			span.SetAttributes(
				attribute.Int("conversation.turns", turns),
				attribute.String("conversation.stop_reason", string(reason)),
			)
			span.SetStatus(codes.Ok, "")

			r.logger.Info("conversation completed",
				zap.Int("turns", turns),
				zap.String("stop_reason", string(reason)),
				zap.String("last_agent", lastAgent))

			return &RunOutcome{
				Transcript: transcript.Clone(),
				Turns:      turns,
				StopReason: reason,
				LastAgent:  lastAgent,
				Duration:   time.Since(start),
			}, nil
		}
	}
}

// turn runs one Produce call. The participant sees a copy of the transcript
// and a context detached from the caller's cancellation.
func (r *RoundRobin) turn(ctx context.Context, p Participant, turns int) (types.Message, error) {
	r.mu.RLock()
	snapshot := r.transcript.Clone()
	r.mu.RUnlock()

	ctx, span := r.tracer.Start(ctx, "conversation.turn",
		trace.WithAttributes(
			attribute.String("agent.name", p.Name()),
			attribute.Int("conversation.turn", turns+1),
		))
	defer span.End()

	start := time.Now()
	msg, err := p.Produce(context.WithoutCancel(ctx), snapshot)
	if r.recorder != nil {
		r.recorder.RecordTurn(p.Name(), time.Since(start), err)
	}
	if err != nil {
		var gf *types.GenerationFailure
		if !errors.As(err, &gf) {
			err = &types.GenerationFailure{Agent: p.Name(), Turn: turns + 1, Kind: types.FailureUnknown, Cause: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Message{}, err
	}

	msg.Source = p.Name()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.logger.Debug("turn completed",
		zap.Int("turn", turns+1),
		zap.String("agent", p.Name()),
		zap.Duration("duration", time.Since(start)))
	return msg, nil
}

func (r *RoundRobin) fail(span trace.Span, runErr *RunError) error {
	r.mu.Lock()
	r.state = StateFailed
	runErr.Transcript = r.transcript.Clone()
	r.mu.Unlock()

	span.RecordError(runErr.Cause)
	span.SetStatus(codes.Error, string(runErr.Reason))

	r.logger.Warn("conversation failed",
		zap.String("reason", string(runErr.Reason)),
		zap.Int("turns", runErr.LastTurn),
		zap.String("last_agent", runErr.LastAgent),
		zap.Error(runErr.Cause))
	return runErr
}

func (r *RoundRobin) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}
