package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration. Precedence when loading:
// defaults, then the YAML file, then environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Gateway   GatewayConfig   `yaml:"gateway" env:"GATEWAY"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	CRM       CRMConfig       `yaml:"crm" env:"CRM"`
	Slack     SlackConfig     `yaml:"slack" env:"SLACK"`
	Twitter   TwitterConfig   `yaml:"twitter" env:"TWITTER"`
	Licensing LicensingConfig `yaml:"licensing" env:"LICENSING"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig controls the HTTP listeners and shutdown behavior.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// GatewayConfig controls request handling at the API edge.
type GatewayConfig struct {
	// Requests per second allowed per client IP.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	// Burst size for the per-IP limiter.
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
	// Maximum request body size in bytes.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// Per-request handling deadline.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// LLMConfig configures the language model provider shared by all agents.
// An empty APIKey puts the provider in demo mode with canned responses.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Deployment  string        `yaml:"deployment" env:"DEPLOYMENT"`
	APIVersion  string        `yaml:"api_version" env:"API_VERSION"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// CRMConfig configures the CRM collaborator. Missing credentials put the
// client in degraded mode with placeholder records.
type CRMConfig struct {
	InstanceURL string        `yaml:"instance_url" env:"INSTANCE_URL"`
	AccessToken string        `yaml:"access_token" env:"ACCESS_TOKEN"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SlackConfig configures the Slack collaborator.
type SlackConfig struct {
	BotToken       string        `yaml:"bot_token" env:"BOT_TOKEN"`
	DefaultChannel string        `yaml:"default_channel" env:"DEFAULT_CHANNEL"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// TwitterConfig configures the Twitter collaborator. API v2 calls use the
// bearer token; the key pair is kept for completeness.
type TwitterConfig struct {
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	APISecret   string        `yaml:"api_secret" env:"API_SECRET"`
	BearerToken string        `yaml:"bearer_token" env:"BEARER_TOKEN"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LicensingConfig configures license storage and usage metering.
type LicensingConfig struct {
	// Redis backing the per-tenant usage counters.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// SQLite database file holding license records.
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	// Bearer token required by the internal licensing endpoints.
	ServiceToken string `yaml:"service_token" env:"SERVICE_TOKEN"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// AuthConfig configures JWT verification at the gateway.
type AuthConfig struct {
	// Enabled gates JWT enforcement; disabled in local development.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// HS256 signing secret.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// Expected token issuer, empty to skip the check.
	Issuer string `yaml:"issuer" env:"ISSUER"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration with a fluent API:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTMESH").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default AGENTMESH env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTMESH",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file to load. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration: defaults, then file, then environment.
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

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

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
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

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
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration from path, panicking on error. For use in
// main and examples only.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the configuration for structurally invalid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Gateway.RateLimit <= 0 {
		errs = append(errs, "gateway rate_limit must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth enabled but jwt_secret is empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Configured reports whether a CRM access token is present. When false the
// CRM client runs in degraded mode.
func (c *CRMConfig) Configured() bool {
	return c.AccessToken != ""
}

// Configured reports whether a Slack bot token is present.
func (c *SlackConfig) Configured() bool {
	return c.BotToken != ""
}

// Configured reports whether a Twitter bearer token is present.
func (c *TwitterConfig) Configured() bool {
	return c.BearerToken != ""
}
