package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model)
	assert.Equal(t, 0.7, cfg.Agent.Temperature)
	assert.Equal(t, 2, cfg.Orchestration.DefaultRounds)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
agent:
  model: gpt-4o
  temperature: 0.2
orchestration:
  default_rounds: 4
  termination_markers: ["WRAP_UP"]
discussion:
  timeout: 5m
llm:
  provider: deepseek
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, 0.2, cfg.Agent.Temperature)
	assert.Equal(t, 4, cfg.Orchestration.DefaultRounds)
	assert.Equal(t, []string{"WRAP_UP"}, cfg.Orchestration.TerminationMarkers)
	assert.Equal(t, 5*time.Minute, cfg.Discussion.Timeout)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)

	// 未覆盖的字段保持默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o600))

	t.Setenv("AGORA_SERVER_HTTP_PORT", "9001")
	t.Setenv("AGORA_LLM_API_KEY", "sk-test")
	t.Setenv("AGORA_REDIS_ENABLED", "true")
	t.Setenv("AGORA_DISCUSSION_TIMEOUT", "30s")
	t.Setenv("AGORA_AUTH_API_KEYS", "key-a, key-b")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Discussion.Timeout)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Auth.APIKeys)
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_AGENT_MODEL", "deepseek-chat")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", cfg.Agent.Model)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.HTTPPort)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestLoad_ValidatorRejects(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }, true},
		{"temperature out of range", func(c *Config) { c.Agent.Temperature = 3 }, true},
		{"zero rounds", func(c *Config) { c.Orchestration.DefaultRounds = 0 }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "mystery" }, true},
		{"compatible without base url", func(c *Config) { c.LLM.Provider = "openai-compatible" }, true},
		{"compatible with base url", func(c *Config) {
			c.LLM.Provider = "openai-compatible"
			c.LLM.BaseURL = "https://llm.internal"
		}, false},
		{"auth enabled without credentials", func(c *Config) { c.Auth.Enabled = true }, true},
		{"auth enabled with api keys", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.APIKeys = []string{"k"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "agora", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=agora sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "agora"}
	assert.Equal(t, "u:p@tcp(db:3306)/agora?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "agora.db"}
	assert.Equal(t, "agora.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Empty(t, unknown.DSN())
}
