// ABOUTME: Package bot runs the Telegram long-polling loop and command handling.
// ABOUTME: Bridges incoming messages to the orchestrator and streams edits back.

// Package bot contains the update loop: it long-polls Telegram for updates,
// dispatches commands, routes plain messages through the session router, and
// streams orchestrator responses back as progressive message edits.
package bot
