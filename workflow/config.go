package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/codecrew/agent/conversation"
	"github.com/BaSui01/codecrew/types"
)

// Role 是 Agent 在代码开发团队中的职责，决定提取哪种产物
type Role string

const (
	RoleWriter    Role = "writer"    // 初始代码
	RoleReviewer  Role = "reviewer"  // 评审意见
	RoleOptimizer Role = "optimizer" // 最终代码
)

// 默认值
const (
	DefaultModel       = "gpt-4"
	DefaultTemperature = 0.1
	DefaultMaxRounds   = 10
	DefaultSentinel    = "WORKFLOW_COMPLETE"
)

// AgentConfig 团队成员配置
type AgentConfig struct {
	Name      string `yaml:"name" json:"name"`
	Directive string `yaml:"directive" json:"directive"`
	// Role 为空时按位置推断：0 writer，1 reviewer，2 optimizer
	Role Role `yaml:"role,omitempty" json:"role,omitempty"`
}

// Config 工作流配置
type Config struct {
	// MaxRounds 产生消息数上限（不含任务消息）
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`
	// Sentinel 提前结束标记，为空表示只按轮次结束
	Sentinel string `yaml:"sentinel" json:"sentinel"`
	// SentinelSources 限定哪些 Agent 的消息可以触发 Sentinel，为空表示任意 Agent
	SentinelSources []string `yaml:"sentinel_sources,omitempty" json:"sentinel_sources,omitempty"`
	// Agents 按发言顺序排列
	Agents []AgentConfig `yaml:"agents" json:"agents"`

	Model       string        `yaml:"model" json:"model"`
	Temperature float32       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	TurnTimeout time.Duration `yaml:"turn_timeout,omitempty" json:"turn_timeout,omitempty"`
}

// DefaultConfig 返回三人代码开发团队的默认配置
func DefaultConfig() Config {
	return Config{
		MaxRounds:   DefaultMaxRounds,
		Sentinel:    DefaultSentinel,
		Agents:      DefaultAgents(),
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
	}
}

// Validate 检查配置，所有问题以 *types.ConfigurationError 返回
func (c Config) Validate() error {
	if c.MaxRounds <= 0 {
		return types.NewConfigurationError("max_rounds", fmt.Sprintf("must be positive, got %d", c.MaxRounds))
	}
	if len(c.Agents) == 0 {
		return types.NewConfigurationError("agents", "at least one agent is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return types.NewConfigurationError("temperature", "must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return types.NewConfigurationError("max_tokens", "must not be negative")
	}
	if c.TurnTimeout < 0 {
		return types.NewConfigurationError("turn_timeout", "must not be negative")
	}

	names := make(map[string]struct{}, len(c.Agents))
	roles := make(map[Role]string, 3)
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if strings.TrimSpace(a.Name) == "" {
			return types.NewConfigurationError(field+".name", "must not be empty")
		}
		if _, dup := names[a.Name]; dup {
			return types.NewConfigurationError(field+".name", "duplicate agent name "+a.Name)
		}
		names[a.Name] = struct{}{}

		switch a.Role {
		case "":
		case RoleWriter, RoleReviewer, RoleOptimizer:
			if other, dup := roles[a.Role]; dup {
				return types.NewConfigurationError(field+".role", fmt.Sprintf("role %s already assigned to %s", a.Role, other))
			}
			roles[a.Role] = a.Name
		default:
			return types.NewConfigurationError(field+".role", "unknown role "+string(a.Role))
		}
	}
	for _, src := range c.SentinelSources {
		if _, ok := names[src]; !ok {
			return types.NewConfigurationError("sentinel_sources", "unknown agent "+src)
		}
	}
	return nil
}

// Termination 构造与配置对应的终止条件
func (c Config) Termination() conversation.Termination {
	maxTurns := conversation.MaxTurns(c.MaxRounds)
	if c.Sentinel == "" {
		return maxTurns
	}
	sentinel := conversation.SentinelMatchWithPolicy(c.Sentinel, conversation.SentinelPolicy{Sources: c.SentinelSources})
	return conversation.Or(maxTurns, sentinel)
}

// RoleAgents 返回每个职责对应的 Agent 名称。
// 显式 Role 优先；未指定的职责取对应位置上未声明 Role 的 Agent。
func (c Config) RoleAgents() map[Role]string {
	out := make(map[Role]string, 3)
	for _, a := range c.Agents {
		if a.Role != "" {
			out[a.Role] = a.Name
		}
	}
	for i, role := range []Role{RoleWriter, RoleReviewer, RoleOptimizer} {
		if _, ok := out[role]; ok || i >= len(c.Agents) {
			continue
		}
		if c.Agents[i].Role == "" {
			out[role] = c.Agents[i].Name
		}
	}
	return out
}

// DefaultAgents 返回默认的 CodeWriter / CodeReviewer / CodeOptimizer 团队
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{Name: "CodeWriter", Role: RoleWriter, Directive: writerDirective},
		{Name: "CodeReviewer", Role: RoleReviewer, Directive: reviewerDirective},
		{Name: "CodeOptimizer", Role: RoleOptimizer, Directive: optimizerDirective},
	}
}

const writerDirective = `You are a skilled software developer specializing in writing clean, efficient code.

Your responsibilities:
1. Analyze the given requirements carefully
2. Write well-structured, functional code that meets the specifications
3. Include appropriate comments and docstrings
4. Follow best practices and coding conventions
5. Provide a brief explanation of your implementation approach

Guidelines:
- Write production-ready code with proper error handling
- Use meaningful variable and function names
- Include type hints where appropriate (Python)
- Keep code modular and maintainable
- Focus on correctness and readability

When you complete your code, end your message with "CODE_WRITTEN" to signal completion.`

const reviewerDirective = `You are an expert code reviewer with extensive experience in software quality assurance.

Your responsibilities:
1. Thoroughly analyze the provided code for quality, efficiency, and best practices
2. Identify potential improvements in performance, readability, and maintainability
3. Check for security vulnerabilities and edge cases
4. Suggest specific optimizations and refactoring opportunities
5. Provide constructive, actionable feedback

Review criteria:
- Code correctness and functionality
- Performance optimization opportunities
- Security considerations
- Code style and conventions
- Error handling and edge cases
- Maintainability and scalability
- Documentation quality

Provide your review in a structured format:
- Overall Assessment
- Strengths
- Areas for Improvement
- Specific Recommendations
- Security Considerations (if any)

When you complete your review, end your message with "REVIEW_COMPLETE" to signal completion.`

const optimizerDirective = `You are a code optimization specialist focused on improving code quality and performance.

Your responsibilities:
1. Take the original code and the reviewer's feedback
2. Implement the suggested improvements and optimizations
3. Enhance performance while maintaining functionality
4. Improve code structure and readability
5. Add any missing error handling or edge case coverage

Optimization priorities:
- Implement all valid suggestions from the code review
- Optimize for performance without sacrificing readability
- Enhance error handling and robustness
- Improve code documentation and comments
- Ensure backward compatibility if applicable
- Maintain or improve test coverage

Provide:
- The optimized code with all improvements
- A summary of changes made
- Performance improvements achieved
- Any additional considerations for future development

When you complete the optimization, end your message with "WORKFLOW_COMPLETE" to signal completion.`
