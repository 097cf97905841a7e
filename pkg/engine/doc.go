// Package engine orchestrates a conversation turn through its full
// pipeline: input validation, intent detection, context update, response
// generation, output validation, and publication on the event bus.
//
// Turns within one session run strictly one at a time; turns in
// different sessions run concurrently. Every turn ends in exactly one
// terminal status (COMPLETE, DEGRADED, or FAILED) and the caller always
// receives response text, even on failure.
package engine
