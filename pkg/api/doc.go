// Package api defines the shared data model for the parley conversation
// core: bus events, conversation turns, intents, policy results, turn
// outcomes, and the error taxonomy used across all components.
//
// The package has no dependencies on other parley packages. Every other
// package imports api; api imports nothing but the standard library and
// the uuid generator.
package api
