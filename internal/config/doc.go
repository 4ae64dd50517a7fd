// Package config handles configuration loading for coven-telegram.
//
// # Overview
//
// Configuration is loaded from a TOML file with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_TELEGRAM_CONFIG environment variable
//  2. ~/.config/coven/telegram.toml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[telegram]
//	bot_token = "${TELEGRAM_BOT_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Telegram connection:
//
//	[telegram]
//	bot_token = "${TELEGRAM_BOT_TOKEN}"
//	parse_mode = "HTML"          # only HTML is supported
//	poll_timeout_seconds = 30    # getUpdates long-poll window
//
// Agent backend:
//
//	[orchestrator]
//	url = "http://localhost:8089"
//	default_agent = "travel"
//
// Database:
//
//	[database]
//	path = "/var/lib/coven/telegram.db"
//
// Bot behavior:
//
//	[bot]
//	typing_indicator = true
//	history_limit = 5
//
// Logging:
//
//	[logging]
//	level = "info"   # debug, info, warn, error
//
// Agent catalog, seeded into the store at startup:
//
//	[[agents]]
//	name = "travel"
//	display_name = "Travel Agent"
//	description = "Books trips"
//	enabled = true
//
// # Usage
//
//	cfg, err := config.Load("/etc/coven/telegram.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
