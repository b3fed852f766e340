// Package app provides the application layer of the rotation engine.
//
// ActionProcessor validates and applies viewer reactions and nominations,
// SelectionEngine picks the next featured candidate, Scheduler drives decay,
// reveals, rotations and heartbeats, and Outbox hands records to the durable
// store off the hot path. Everything depends on domain interfaces and the
// rotation.State gate, not on concrete adapters.
package app
