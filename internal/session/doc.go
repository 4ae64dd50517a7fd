// ABOUTME: Package session routes chat participants to agent conversations.
// ABOUTME: Enforces the single-active-session rule per chat/user.

// Package session maps a Telegram chat participant to the agent conversation
// that should receive their messages. Conversation IDs are derived
// deterministically from chat, user and agent, so resolving the same identity
// twice always lands in the same conversation.
package session
