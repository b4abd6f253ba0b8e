package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/llm/tokenizer"
	"github.com/BaSui01/codecrew/types"
	"go.uber.org/zap"
)

// Participant is anything that can take a turn in a round-robin conversation.
type Participant interface {
	Name() string
	Produce(ctx context.Context, transcript types.Transcript) (types.Message, error)
}

// AgentConfig is the static identity of an agent.
type AgentConfig struct {
	Name        string        `json:"name" yaml:"name"`
	Directive   string        `json:"directive" yaml:"directive"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TurnTimeout time.Duration `json:"turn_timeout,omitempty" yaml:"turn_timeout,omitempty"`
}

// Agent produces one message per call by sending its directive and the
// transcript so far to the completion provider. It keeps no state between
// calls.
type Agent struct {
	config    AgentConfig
	provider  llm.Provider
	tokenizer tokenizer.Tokenizer
	logger    *zap.Logger
}

var _ Participant = (*Agent)(nil)

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentLogger sets the agent logger.
func WithAgentLogger(logger *zap.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTokenizer enables usage estimation when the provider reports none.
func WithTokenizer(t tokenizer.Tokenizer) AgentOption {
	return func(a *Agent) { a.tokenizer = t }
}

// NewAgent creates an agent bound to provider.
func NewAgent(config AgentConfig, provider llm.Provider, opts ...AgentOption) (*Agent, error) {
	if strings.TrimSpace(config.Name) == "" {
		return nil, types.NewConfigurationError("agent.name", "must not be empty")
	}
	if config.Name == types.SourceTask {
		return nil, types.NewConfigurationError("agent.name", "\""+types.SourceTask+"\" is reserved for the task message")
	}
	if provider == nil {
		return nil, types.NewConfigurationError("agent.provider", "must not be nil")
	}
	if config.TurnTimeout < 0 {
		return nil, types.NewConfigurationError("agent.turn_timeout", "must not be negative")
	}

	a := &Agent{
		config:   config,
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "agent"), zap.String("agent", config.Name))
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.config.Name }

// Produce requests one completion for the given transcript and wraps the
// reply into a message tagged with the agent name. Provider errors are
// returned as *types.GenerationFailure; nothing is retried here.
func (a *Agent) Produce(ctx context.Context, transcript types.Transcript) (types.Message, error) {
	turn := transcript.Len()
	req := a.buildRequest(transcript)

	if a.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.TurnTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		kind := classify(ctx, err)
		a.logger.Warn("completion failed",
			zap.Int("turn", turn),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return types.Message{}, &types.GenerationFailure{Agent: a.config.Name, Turn: turn, Kind: kind, Cause: err}
	}

	content, ok := resp.FirstContent()
	if !ok || strings.TrimSpace(content) == "" {
		cause := &llm.Error{Code: llm.ErrMalformedResponse, Message: "completion returned no content", Provider: a.provider.Name()}
		return types.Message{}, &types.GenerationFailure{Agent: a.config.Name, Turn: turn, Kind: types.FailureMalformed, Cause: cause}
	}

	msg := types.NewMessage(a.config.Name, content)
	if usage, ok := a.usage(req, resp, content); ok {
		msg = msg.WithUsage(usage)
	}

	a.logger.Debug("message produced",
		zap.Int("turn", turn),
		zap.Int("length", len(content)),
		zap.Duration("latency", time.Since(start)))
	return msg, nil
}

// buildRequest renders the transcript from the agent's point of view: its
// own messages are assistant turns, everything else is a user turn prefixed
// with the speaker name.
func (a *Agent) buildRequest(transcript types.Transcript) *llm.ChatRequest {
	messages := make([]llm.Message, 0, transcript.Len()+1)
	if a.config.Directive != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.config.Directive})
	}
	for _, m := range transcript {
		switch {
		case m.Source == a.config.Name:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case m.IsTask():
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: m.Content})
		default:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: m.Source + ": " + m.Content})
		}
	}
	return &llm.ChatRequest{
		Model:       a.config.Model,
		Messages:    messages,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		Metadata:    map[string]string{"agent": a.config.Name},
	}
}

func (a *Agent) usage(req *llm.ChatRequest, resp *llm.ChatResponse, content string) (types.TokenUsage, bool) {
	if reported := resp.Usage.TokenUsage(); !reported.IsZero() {
		return reported, true
	}
	if a.tokenizer == nil {
		return types.TokenUsage{}, false
	}
	prompt := make([]tokenizer.Message, len(req.Messages))
	for i, m := range req.Messages {
		prompt[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	estimated, err := tokenizer.EstimateUsage(a.tokenizer, prompt, content)
	if err != nil {
		a.logger.Debug("usage estimation failed", zap.Error(err))
		return types.TokenUsage{}, false
	}
	return estimated, true
}

// classify maps a provider error onto a failure kind.
func classify(ctx context.Context, err error) types.FailureKind {
	if llmErr, ok := llm.AsError(err); ok {
		switch llmErr.Code {
		case llm.ErrRateLimited:
			return types.FailureRateLimit
		case llm.ErrQuotaExceeded:
			return types.FailureQuota
		case llm.ErrUpstreamTimeout:
			return types.FailureTimeout
		case llm.ErrMalformedResponse:
			return types.FailureMalformed
		case llm.ErrInvalidRequest, llm.ErrUnauthorized, llm.ErrForbidden:
			return types.FailureRejected
		case llm.ErrUpstreamError, llm.ErrModelOverloaded, llm.ErrProviderUnavailable:
			return types.FailureConnectivity
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	return types.FailureUnknown
}
