// ABOUTME: Package telegram is a minimal Telegram Bot API client.
// ABOUTME: Covers long polling, message send/edit, chat actions, and formatting.

// Package telegram implements the subset of the Telegram Bot API the bridge
// needs: getUpdates long polling, sendMessage, editMessageText, and
// sendChatAction, plus helpers for length truncation and Markdown-to-HTML
// formatting with a plain-text fallback.
package telegram
