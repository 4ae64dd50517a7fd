// Package dedupe provides update deduplication using a time-based cache
// to keep re-delivered Telegram updates from being processed twice.
package dedupe
