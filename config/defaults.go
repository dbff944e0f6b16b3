package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Gateway:   DefaultGatewayConfig(),
		LLM:       DefaultLLMConfig(),
		CRM:       DefaultCRMConfig(),
		Slack:     DefaultSlackConfig(),
		Twitter:   DefaultTwitterConfig(),
		Licensing: DefaultLicensingConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultGatewayConfig returns default edge settings.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RateLimit:      100,
		RateBurst:      200,
		MaxBodyBytes:   1 << 20, // 1 MiB
		RequestTimeout: 60 * time.Second,
	}
}

// DefaultLLMConfig returns default model settings. With no API key the
// provider serves deterministic demo responses.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		APIVersion:  "2024-02-01",
		Model:       "gpt-4",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
	}
}

// DefaultCRMConfig returns default CRM client settings (degraded mode).
func DefaultCRMConfig() CRMConfig {
	return CRMConfig{
		Timeout: 15 * time.Second,
	}
}

// DefaultSlackConfig returns default Slack client settings (degraded mode).
func DefaultSlackConfig() SlackConfig {
	return SlackConfig{
		DefaultChannel: "#leads",
		Timeout:        10 * time.Second,
	}
}

// DefaultTwitterConfig returns default Twitter client settings (degraded mode).
func DefaultTwitterConfig() TwitterConfig {
	return TwitterConfig{
		Timeout: 10 * time.Second,
	}
}

// DefaultLicensingConfig returns default licensing settings.
func DefaultLicensingConfig() LicensingConfig {
	return LicensingConfig{
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		DatabasePath: "agentmesh.db",
	}
}

// DefaultAuthConfig returns default auth settings. Auth is off by default so
// local development works without minting tokens.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled: false,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentmesh",
		SampleRate:   1.0,
	}
}
