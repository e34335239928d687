// Package runner provides asynchronous turn execution on top of the engine.
//
// The TurnRunner hands each turn to a goroutine, bounds how many run at once
// and tracks in-flight runs so callers can cancel by run id. Cancellation is
// cooperative: a run that is still waiting for its session lock aborts, while
// a run that already started processing completes and persists — session
// state is never left half-migrated because a client hung up.
package runner
