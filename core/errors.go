package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionExists is returned by the archive when a (scenario, version)
	// snapshot is already published; archives are append-only.
	ErrVersionExists = errors.New("scenario version already archived")

	// ErrConflict is the compare-and-swap failure on session save: another
	// writer persisted the session since it was loaded.
	ErrConflict = errors.New("session save conflict")

	// ErrSessionBusy is the immediate-reject outcome when a session's turn
	// lock is already held.
	ErrSessionBusy = errors.New("session busy")

	// ErrLockTimeout is the bounded-wait outcome when a session's turn lock
	// could not be acquired in time. Retryable by the caller.
	ErrLockTimeout = errors.New("session lock timeout")
)

// ValidationError signals malformed input to the planner or selection
// strategy. It is a caller bug: fail fast, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// MigrationChainError signals a non-contiguous or cross-scenario plan chain.
// It is surfaced to whoever deployed the plans; the turn proceeds without
// migration and the session stays flagged for the next turn.
type MigrationChainError struct {
	ScenarioID string
	Reason     string
}

func (e *MigrationChainError) Error() string {
	return fmt.Sprintf("migration chain for scenario %s: %s", e.ScenarioID, e.Reason)
}

// ConsistencyWarning records a non-fatal inconsistency (a step missing after
// migration, a stale checksum mismatch). It is logged, never returned on the
// response path; the turn continues with best-effort defaults.
type ConsistencyWarning struct {
	ScenarioID string
	StepID     string
	Reason     string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("consistency: scenario %s step %q: %s", e.ScenarioID, e.StepID, e.Reason)
}
