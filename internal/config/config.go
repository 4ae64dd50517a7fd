// ABOUTME: Configuration loading and parsing for coven-telegram
// ABOUTME: Supports TOML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config represents the complete coven-telegram configuration
type Config struct {
	Telegram     TelegramConfig     `toml:"telegram"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Database     DatabaseConfig     `toml:"database"`
	Bot          BotConfig          `toml:"bot"`
	Logging      LoggingConfig      `toml:"logging"`
	Agents       []AgentConfig      `toml:"agents"`
}

// TelegramConfig holds Bot API connection settings
type TelegramConfig struct {
	BotToken           string `toml:"bot_token"`
	WebhookURL         string `toml:"webhook_url"`
	ParseMode          string `toml:"parse_mode"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

// OrchestratorConfig holds agent backend connection settings
type OrchestratorConfig struct {
	URL          string `toml:"url"`
	DefaultAgent string `toml:"default_agent"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// BotConfig holds behavior tuning for the bot itself
type BotConfig struct {
	TypingIndicator bool `toml:"typing_indicator"`
	HistoryLimit    int  `toml:"history_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// AgentConfig is one catalog entry seeded into the store at startup
type AgentConfig struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	Description string `toml:"description"`
	Enabled     bool   `toml:"enabled"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Telegram.ParseMode == "" {
		c.Telegram.ParseMode = "HTML"
	}
	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Bot.HistoryLimit == 0 {
		c.Bot.HistoryLimit = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.WebhookURL != "" {
		return fmt.Errorf("webhook mode is not supported; remove telegram.webhook_url to use long polling")
	}
	if c.Telegram.ParseMode != "HTML" && c.Telegram.ParseMode != "" {
		return fmt.Errorf("telegram.parse_mode %q is not supported (only HTML)", c.Telegram.ParseMode)
	}

	if c.Orchestrator.URL == "" {
		return fmt.Errorf("orchestrator.url is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	seen := make(map[string]bool)
	for _, agent := range c.Agents {
		if agent.Name == "" {
			return fmt.Errorf("agents entries require a name")
		}
		if seen[agent.Name] {
			return fmt.Errorf("duplicate agent name %q", agent.Name)
		}
		seen[agent.Name] = true
	}

	if c.Orchestrator.DefaultAgent != "" && len(c.Agents) > 0 && !seen[c.Orchestrator.DefaultAgent] {
		return fmt.Errorf("orchestrator.default_agent %q is not in the agents list", c.Orchestrator.DefaultAgent)
	}

	return nil
}
