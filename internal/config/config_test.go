// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"
poll_timeout_seconds = 45

[orchestrator]
url = "http://localhost:8089"
default_agent = "travel"

[database]
path = "./test.db"

[bot]
typing_indicator = true
history_limit = 10

[logging]
level = "debug"

[[agents]]
name = "travel"
display_name = "Travel Agent"
description = "Books trips"
enabled = true

[[agents]]
name = "finance"
display_name = "Finance Agent"
enabled = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, 45, cfg.Telegram.PollTimeoutSeconds)
	assert.Equal(t, "HTML", cfg.Telegram.ParseMode)
	assert.Equal(t, "http://localhost:8089", cfg.Orchestrator.URL)
	assert.Equal(t, "travel", cfg.Orchestrator.DefaultAgent)
	assert.True(t, cfg.Bot.TypingIndicator)
	assert.Equal(t, 10, cfg.Bot.HistoryLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "travel", cfg.Agents[0].Name)
	assert.False(t, cfg.Agents[1].Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"

[orchestrator]
url = "http://localhost:8089"

[database]
path = "./test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "HTML", cfg.Telegram.ParseMode)
	assert.Equal(t, 30, cfg.Telegram.PollTimeoutSeconds)
	assert.Equal(t, 5, cfg.Bot.HistoryLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "999:secret")

	path := writeConfig(t, `
[telegram]
bot_token = "${TEST_BOT_TOKEN}"

[orchestrator]
url = "http://localhost:8089"

[database]
path = "./test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "999:secret", cfg.Telegram.BotToken)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: "bot_token",
		},
		{
			name:    "webhook mode rejected",
			mutate:  func(c *Config) { c.Telegram.WebhookURL = "https://example.com/hook" },
			wantErr: "webhook mode is not supported",
		},
		{
			name:    "unsupported parse mode",
			mutate:  func(c *Config) { c.Telegram.ParseMode = "MarkdownV2" },
			wantErr: "parse_mode",
		},
		{
			name:    "missing orchestrator url",
			mutate:  func(c *Config) { c.Orchestrator.URL = "" },
			wantErr: "orchestrator.url",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "duplicate agent names",
			mutate: func(c *Config) {
				c.Agents = []AgentConfig{{Name: "a"}, {Name: "a"}}
			},
			wantErr: "duplicate agent",
		},
		{
			name: "default agent not in list",
			mutate: func(c *Config) {
				c.Agents = []AgentConfig{{Name: "a"}}
				c.Orchestrator.DefaultAgent = "missing"
			},
			wantErr: "default_agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram:     TelegramConfig{BotToken: "123:abc", ParseMode: "HTML", PollTimeoutSeconds: 30},
				Orchestrator: OrchestratorConfig{URL: "http://localhost:8089"},
				Database:     DatabaseConfig{Path: "./test.db"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
