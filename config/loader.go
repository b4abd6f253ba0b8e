// =============================================================================
// 📦 CodeCrew 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("codecrew.yaml").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量（前缀 CODECREW） → 覆盖函数
// =============================================================================
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/codecrew/types"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "CODECREW"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config CodeCrew 完整配置
type Config struct {
	Workflow  WorkflowConfig  `yaml:"workflow" env:"WORKFLOW"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
	Metrics   MetricsConfig   `yaml:"metrics" env:"METRICS"`
}

// WorkflowConfig 工作流配置
type WorkflowConfig struct {
	// 产出消息数上限
	MaxRounds int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	// 结束标记，空字符串表示只按轮次结束
	Sentinel string `yaml:"sentinel" env:"SENTINEL"`
	// 允许触发结束标记的 Agent，空表示任意 Agent
	SentinelSources []string `yaml:"sentinel_sources" env:"SENTINEL_SOURCES"`
	// 单轮生成超时，0 表示不限
	TurnTimeout time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	// 批量运行并发数
	BatchConcurrency int `yaml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
	// 团队成员，仅支持 YAML；为空时使用默认三人团队
	Agents []AgentConfig `yaml:"agents" env:"-"`
}

// AgentConfig 团队成员配置
type AgentConfig struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	Directive string `yaml:"directive"`
}

// LLMConfig 补全服务配置
type LLMConfig struct {
	// OpenAI 兼容接口地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key，为空时读取 OPENAI_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数，0 表示由服务端决定
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 每秒请求数，0 表示不限流
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 令牌桶容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// CacheConfig 补全缓存（Redis）配置
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED"`
	Addr      string        `yaml:"addr" env:"ADDR"`
	Password  string        `yaml:"password" env:"PASSWORD"`
	DB        int           `yaml:"db" env:"DB"`
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig 运行历史数据库配置
type DatabaseConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 连接字符串，sqlite 为文件路径
	DSN string `yaml:"dsn" env:"DSN"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Addr      string `yaml:"addr" env:"ADDR"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	overrides  []func(*Config)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithOverride 添加在环境变量之后、验证之前应用的修改（如命令行参数）
func (l *Loader) WithOverride(fn func(*Config)) *Loader {
	l.overrides = append(l.overrides, fn)
	return l
}

// WithValidator 添加额外的配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载并验证配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	for _, fn := range l.overrides {
		fn(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// loadFromFile 读取 YAML，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}
	return nil
}

// =============================================================================
// 🔍 验证
// =============================================================================

// Validate 验证配置，所有问题以 *types.ConfigurationError 合并返回
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, reason string) {
		errs = append(errs, types.NewConfigurationError(field, reason))
	}

	if c.Workflow.MaxRounds < 1 {
		bad("workflow.max_rounds", "must be at least 1")
	}
	if c.Workflow.TurnTimeout < 0 {
		bad("workflow.turn_timeout", "must not be negative")
	}
	if c.Workflow.BatchConcurrency < 0 {
		bad("workflow.batch_concurrency", "must not be negative")
	}
	seen := make(map[string]bool, len(c.Workflow.Agents))
	for i, a := range c.Workflow.Agents {
		name := strings.TrimSpace(a.Name)
		if name == "" || seen[name] {
			bad(fmt.Sprintf("workflow.agents[%d].name", i), "must be non-empty and unique")
		}
		seen[name] = true
	}

	if c.LLM.Model == "" {
		bad("llm.model", "must not be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		bad("llm.temperature", "must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 0 {
		bad("llm.max_tokens", "must not be negative")
	}
	if c.LLM.MaxRetries < 0 {
		bad("llm.max_retries", "must not be negative")
	}
	if c.LLM.RateLimitRPS < 0 {
		bad("llm.rate_limit_rps", "must not be negative")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		bad("cache.addr", "required when cache is enabled")
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite", "postgres", "mysql":
		default:
			bad("database.driver", "must be one of sqlite, postgres, mysql")
		}
		if c.Database.DSN == "" {
			bad("database.dsn", "required when database is enabled")
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		bad("telemetry.otlp_endpoint", "required when telemetry is enabled")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		bad("telemetry.sample_rate", "must be between 0 and 1")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		bad("metrics.addr", "required when metrics are enabled")
	}

	return errors.Join(errs...)
}

// ResolveAPIKey 返回配置的 API Key，未配置时回退到 OPENAI_API_KEY
func (c *LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
