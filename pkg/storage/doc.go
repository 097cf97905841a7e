// Package storage defines the durable record of conversation turns and
// system events, with sentinel errors shared across adapter
// implementations.
//
// Adapters (memory, postgres) implement the TurnStore interface. The
// Recorder in this package bridges the event bus to a TurnStore with
// bounded retries, treating a duplicate write as success so redelivered
// events stay idempotent.
package storage
