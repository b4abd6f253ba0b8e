package workflow

import (
	"testing"
	"time"

	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.MaxRounds)
	assert.Equal(t, "WORKFLOW_COMPLETE", cfg.Sentinel)
	assert.Equal(t, "gpt-4", cfg.Model)
	assert.InDelta(t, 0.1, cfg.Temperature, 0.0001)
	require.Len(t, cfg.Agents, 3)
	assert.Equal(t, "CodeWriter", cfg.Agents[0].Name)
	assert.Equal(t, "CodeReviewer", cfg.Agents[1].Name)
	assert.Equal(t, "CodeOptimizer", cfg.Agents[2].Name)
	assert.Contains(t, cfg.Agents[2].Directive, "WORKFLOW_COMPLETE")
	assert.Empty(t, cfg.SentinelSources)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, "max_rounds"},
		{"negative rounds", func(c *Config) { c.MaxRounds = -1 }, "max_rounds"},
		{"no agents", func(c *Config) { c.Agents = nil }, "agents"},
		{"duplicate names", func(c *Config) { c.Agents[2].Name = "CodeWriter" }, "agents[2].name"},
		{"blank name", func(c *Config) { c.Agents[1].Name = " " }, "agents[1].name"},
		{"duplicate role", func(c *Config) { c.Agents[1].Role = RoleWriter }, "agents[1].role"},
		{"unknown role", func(c *Config) { c.Agents[0].Role = "tester" }, "agents[0].role"},
		{"temperature", func(c *Config) { c.Temperature = 3 }, "temperature"},
		{"turn timeout", func(c *Config) { c.TurnTimeout = -time.Second }, "turn_timeout"},
		{"unknown sentinel source", func(c *Config) { c.SentinelSources = []string{"Nobody"} }, "sentinel_sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var ce *types.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_Termination(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, `MaxTurns(10) | SentinelMatch("WORKFLOW_COMPLETE")`, cfg.Termination().String())

	cfg.Sentinel = ""
	assert.Equal(t, "MaxTurns(10)", cfg.Termination().String())

	cfg.Sentinel = "DONE"
	cfg.SentinelSources = []string{"CodeOptimizer"}
	term := cfg.Termination()
	require.NoError(t, term.Validate())
	assert.Equal(t, 10, term.MaxTurnLimit())

	tr := types.Transcript{}.
		Append(types.NewTaskMessage("t")).
		Append(types.NewMessage("CodeWriter", "DONE"))
	stop, _ := term.Evaluate(tr, 1)
	assert.False(t, stop)

	tr = tr.Append(types.NewMessage("CodeOptimizer", "DONE"))
	stop, reason := term.Evaluate(tr, 2)
	assert.True(t, stop)
	assert.Equal(t, conversation.StopSentinel, reason)
}

func TestConfig_RoleAgents(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		roles := DefaultConfig().RoleAgents()
		assert.Equal(t, map[Role]string{
			RoleWriter:    "CodeWriter",
			RoleReviewer:  "CodeReviewer",
			RoleOptimizer: "CodeOptimizer",
		}, roles)
	})

	t.Run("positional", func(t *testing.T) {
		cfg := Config{Agents: []AgentConfig{{Name: "Writer"}, {Name: "Reviewer"}, {Name: "Optimizer"}}}
		assert.Equal(t, map[Role]string{
			RoleWriter:    "Writer",
			RoleReviewer:  "Reviewer",
			RoleOptimizer: "Optimizer",
		}, cfg.RoleAgents())
	})

	t.Run("mixed and short", func(t *testing.T) {
		cfg := Config{Agents: []AgentConfig{{Name: "A"}, {Name: "B", Role: RoleOptimizer}}}
		assert.Equal(t, map[Role]string{
			RoleWriter:    "A",
			RoleOptimizer: "B",
		}, cfg.RoleAgents())
	})
}
