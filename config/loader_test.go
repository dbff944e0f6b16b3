package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "#leads", cfg.Slack.DefaultChannel)
	assert.Equal(t, int64(1<<20), cfg.Gateway.MaxBodyBytes)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9000
  shutdown_timeout: 5s
llm:
  provider: local
  base_url: http://localhost:11434
  model: llama3
crm:
  instance_url: https://example.my.crm.test
  access_token: 00Dtoken
auth:
  enabled: true
  jwt_secret: topsecret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "local", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.True(t, cfg.CRM.Configured())
	assert.True(t, cfg.Auth.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o600))

	t.Setenv("AGENTMESH_SERVER_HTTP_PORT", "9100")
	t.Setenv("AGENTMESH_LLM_API_KEY", "sk-test")
	t.Setenv("AGENTMESH_LLM_TIMEOUT", "90s")
	t.Setenv("AGENTMESH_LOG_OUTPUT_PATHS", "stdout, /var/log/agentmesh.log")
	t.Setenv("AGENTMESH_AUTH_ENABLED", "true")
	t.Setenv("AGENTMESH_AUTH_JWT_SECRET", "envsecret")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"stdout", "/var/log/agentmesh.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Auth.Enabled)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("MESH_SERVER_HTTP_PORT", "7070")

	cfg, err := NewLoader().WithEnvPrefix("MESH").Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
}

func TestValidatorRejectsConfig(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "bad rate limit",
			mutate:  func(c *Config) { c.Gateway.RateLimit = 0 },
			wantErr: "rate_limit",
		},
		{
			name:    "bad temperature",
			mutate:  func(c *Config) { c.LLM.Temperature = 3 },
			wantErr: "temperature",
		},
		{
			name: "auth without secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = ""
			},
			wantErr: "jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCollaboratorConfigured(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.CRM.Configured())
	assert.False(t, cfg.Slack.Configured())
	assert.False(t, cfg.Twitter.Configured())

	cfg.CRM = CRMConfig{InstanceURL: "https://x", AccessToken: "00Dtoken"}
	cfg.Slack.BotToken = "xoxb-1"
	cfg.Twitter = TwitterConfig{BearerToken: "AAAA"}

	assert.True(t, cfg.CRM.Configured())
	assert.True(t, cfg.Slack.Configured())
	assert.True(t, cfg.Twitter.Configured())
}
