// ABOUTME: Package conversation manages conversation records, message history,
// ABOUTME: and the agent catalog on top of the persistence layer.

// Package conversation provides the service layer between the bot and the
// store: ensuring conversation records exist, recording exchanged messages,
// serving history, and seeding/querying the agent catalog.
package conversation
