package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quill.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Jobs.Store)
	assert.Equal(t, 4, cfg.Workers.Concurrency)
	assert.Equal(t, LLMProviderGemini, cfg.LLM.DefaultProvider)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	first := writeConfig(t, `
[server]
port = 9000

[jobs]
store = "badger"
ttl = "12h"
`)
	second := writeConfig(t, `
[server]
port = 9100

[llm]
default_provider = "offline"
`)

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "badger", cfg.Jobs.Store)
	assert.Equal(t, "12h", cfg.Jobs.TTL)
	assert.Equal(t, LLMProviderOffline, cfg.LLM.DefaultProvider)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset keys keep defaults")
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
`)
	t.Setenv("QUILL_SERVER_PORT", "9200")
	t.Setenv("QUILL_JOBS_FAIL_FAST", "true")
	t.Setenv("QUILL_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("QUILL_NATS_URL", "nats://localhost:4222")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.True(t, cfg.Jobs.FailFast)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[server\nport = 1"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"job store", func(c *Config) { c.Jobs.Store = "redis" }},
		{"source type", func(c *Config) { c.Sources.Type = "s3" }},
		{"ttl", func(c *Config) { c.Jobs.TTL = "one day" }},
		{"provider", func(c *Config) { c.LLM.DefaultProvider = "gpt" }},
		{"concurrency", func(c *Config) { c.Workers.Concurrency = 0 }},
		{"cron", func(c *Config) { c.Scheduler.CleanupSchedule = "often" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DisabledSchedulerSkipsCron(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.CleanupSchedule = "often"
	assert.NoError(t, cfg.Validate())
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8080, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 7070, "0.0.0.0")
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, time.Hour, ParseDurationOr("", time.Hour))
	assert.Equal(t, time.Hour, ParseDurationOr("bogus", time.Hour))
	assert.Equal(t, 90*time.Second, ParseDurationOr("90s", time.Hour))
}
