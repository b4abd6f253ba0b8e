package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Workflow:  DefaultWorkflowConfig(),
		LLM:       DefaultLLMConfig(),
		Cache:     DefaultCacheConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultWorkflowConfig 返回默认工作流配置，Agents 为空表示默认团队
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxRounds:        10,
		Sentinel:         "WORKFLOW_COMPLETE",
		TurnTimeout:      2 * time.Minute,
		BatchConcurrency: 2,
	}
}

// DefaultLLMConfig 返回默认补全服务配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:        "https://api.openai.com",
		Model:          "gpt-4",
		Temperature:    0.1,
		Timeout:        90 * time.Second,
		MaxRetries:     3,
		RateLimitRPS:   0,
		RateLimitBurst: 1,
	}
}

// DefaultCacheConfig 返回默认缓存配置（默认关闭）
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		KeyPrefix: "codecrew:",
		TTL:       time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（本地 SQLite 文件，默认关闭）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		DSN:             "codecrew.db",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "codecrew",
		SampleRate:   1.0,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "codecrew",
	}
}
