// Package render turns the backend's response event stream into a small
// number of rate-limited, human-readable message edits.
//
// Classify maps each event to a renderable fragment (or drops it), the
// merge functions grow the accumulated answer text while preserving
// sentence and paragraph boundaries, and the Aggregator drives the whole
// stream against an Editor, switching between tool-status and content
// rendering modes.
package render
