// ABOUTME: Entry point for the coven-telegram bridge
// ABOUTME: Connects Telegram chats to coven agents via the orchestrator API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-telegram/internal/bot"
	"github.com/2389/coven-telegram/internal/config"
	"github.com/2389/coven-telegram/internal/conversation"
	"github.com/2389/coven-telegram/internal/orchestrator"
	"github.com/2389/coven-telegram/internal/session"
	"github.com/2389/coven-telegram/internal/store"
	"github.com/2389/coven-telegram/internal/telegram"
)

const banner = `
    ╭────────────────────────────────────╮
    │                                    │
    │   ┏━╸┏━┓╻ ╻┏━╸┏┓╻   ╺┳╸┏━╸╻  ┏━╸   │
    │   ┃  ┃ ┃┃┏┛┣╸ ┃┗┫    ┃ ┣╸ ┃  ┃╺┓   │
    │   ┗━╸┗━┛┗┛ ┗━╸╹ ╹    ╹ ┗━╸┗━╸┗━┛   │
    │                                    │
    │        coven-telegram bridge       │
    │                                    │
    ╰────────────────────────────────────╯
`

// getConfigPath returns the path to the telegram bridge config file.
// Priority: COVEN_TELEGRAM_CONFIG env var > XDG_CONFIG_HOME/coven/telegram.toml > ~/.config/coven/telegram.toml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_TELEGRAM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "telegram.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "telegram.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// A local .env is optional; the config file can reference its variables.
	_ = godotenv.Load()

	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:       %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Orchestrator: %s\n", cfg.Orchestrator.URL)
	green.Print("    ▶ ")
	fmt.Printf("Database:     %s\n", cfg.Database.Path)
	if cfg.Orchestrator.DefaultAgent != "" {
		green.Print("    ▶ ")
		fmt.Printf("Agent:        %s\n", cfg.Orchestrator.DefaultAgent)
	}
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conversations := conversation.NewService(st, logger)
	if len(cfg.Agents) > 0 {
		agents := make([]*store.Agent, 0, len(cfg.Agents))
		for _, a := range cfg.Agents {
			agents = append(agents, &store.Agent{
				Name:        a.Name,
				DisplayName: a.DisplayName,
				Description: a.Description,
				Enabled:     a.Enabled,
			})
		}
		if err := conversations.SeedAgents(ctx, agents); err != nil {
			return fmt.Errorf("seeding agents: %w", err)
		}
	}

	router := session.NewRouter(st, conversations, cfg.Orchestrator.DefaultAgent, logger)
	orch := orchestrator.NewClient(cfg.Orchestrator.URL, logger)
	tg := telegram.NewClient(cfg.Telegram.BotToken, logger)

	b := bot.New(tg, router, conversations, orch, bot.Options{
		TypingIndicator:    cfg.Bot.TypingIndicator,
		HistoryLimit:       cfg.Bot.HistoryLimit,
		PollTimeoutSeconds: cfg.Telegram.PollTimeoutSeconds,
		ParseMode:          cfg.Telegram.ParseMode,
	}, logger)

	logger.Info("starting telegram bridge")
	return b.Run(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
