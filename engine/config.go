package engine

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// LockPolicy decides what happens when a turn arrives while the session's
// lock is held. This is deployment policy, not a core invariant: both
// behaviors preserve single-writer-per-session.
type LockPolicy string

const (
	// LockPolicyWait blocks up to LockWaitTimeout, then fails with
	// ErrLockTimeout.
	LockPolicyWait LockPolicy = "wait"
	// LockPolicyReject fails immediately with ErrSessionBusy.
	LockPolicyReject LockPolicy = "reject"
)

// Config defines tuning parameters for the engine's turn processing.
type Config struct {
	// LockPolicy selects bounded-wait or immediate-reject lock contention
	// handling.
	LockPolicy LockPolicy `env:"SCENARIOMESH_LOCK_POLICY" envDefault:"wait"`

	// LockWaitTimeout bounds lock acquisition under LockPolicyWait.
	LockWaitTimeout time.Duration `env:"SCENARIOMESH_LOCK_WAIT_TIMEOUT" envDefault:"3s"`

	// SaveRetries is how many times a turn is re-run against freshly loaded
	// state after a persistence conflict before the conflict is surfaced.
	SaveRetries int `env:"SCENARIOMESH_SAVE_RETRIES" envDefault:"1"`

	// MinCandidates / MaxCandidates bound the adaptive rule selection.
	MinCandidates int `env:"SCENARIOMESH_MIN_CANDIDATES" envDefault:"1"`
	MaxCandidates int `env:"SCENARIOMESH_MAX_CANDIDATES" envDefault:"5"`
}

// DefaultConfig provides production-ready defaults: bounded waiting keeps
// bursty same-session traffic ordered instead of erroring, and one conflict
// retry absorbs the common restart race.
var DefaultConfig = Config{
	LockPolicy:      LockPolicyWait,
	LockWaitTimeout: 3 * time.Second,
	SaveRetries:     1,
	MinCandidates:   1,
	MaxCandidates:   5,
}

// ConfigFromEnv builds a Config from SCENARIOMESH_* environment variables,
// falling back to the documented defaults.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse engine config: %w", err)
	}
	return cfg, nil
}
