// =============================================================================
// 📦 Agora 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Agent:         DefaultAgentConfig(),
		Orchestration: DefaultOrchestrationConfig(),
		Discussion:    DefaultDiscussionConfig(),
		LLM:           DefaultLLMConfig(),
		Redis:         DefaultRedisConfig(),
		Database:      DefaultDatabaseConfig(),
		Auth:          DefaultAuthConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		// 默认不允许任何跨域来源，需显式配置（"*" 表示放行所有）。
		CORSAllowedOrigins: nil,
	}
}

// DefaultAgentConfig 返回默认 Agent 配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		PromptsDir:  "",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   2048,
		TokenBudget: 0,
	}
}

// DefaultOrchestrationConfig 返回默认编排配置
func DefaultOrchestrationConfig() OrchestrationConfig {
	return OrchestrationConfig{
		DefaultRounds:      2,
		SelectorModel:      "gpt-4o-mini",
		TerminationMarkers: []string{"TERMINATE", "DONE"},
	}
}

// DefaultDiscussionConfig 返回默认讨论配置
func DefaultDiscussionConfig() DiscussionConfig {
	return DiscussionConfig{
		Timeout:          10 * time.Minute,
		SubscriberBuffer: 64,
		StatusCacheTTL:   time.Hour,
		RetentionTTL:     24 * time.Hour,
		ArchiveEnabled:   false,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "openai",
		APIKey:   "",
		BaseURL:  "",
		Timeout:  2 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "agora",
		Password:        "",
		Name:            "agora.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:   false,
		JWTSecret: "",
		JWTIssuer: "agora",
		TokenTTL:  24 * time.Hour,
		APIKeys:   nil,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agora",
		SampleRate:   0.1,
	}
}
