package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/engine"
	"github.com/convoworks/scenariomesh/logging"
)

// Result is the outcome of one asynchronous turn.
type Result struct {
	Plan    *core.ResponsePlan
	Session *core.Session
	Err     error
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentTurns bounds turns in flight across all sessions.
	MaxConcurrentTurns int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// TurnRunner executes turns asynchronously and tracks in-flight runs for
// cancellation. Public methods are safe for concurrent use.
type TurnRunner struct {
	engine *engine.Engine
	sem    chan struct{}
	logger logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a TurnRunner around an engine.
func New(e *engine.Engine, optFns ...func(o *Options)) *TurnRunner {
	opts := Options{
		MaxConcurrentTurns: 64,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &TurnRunner{
		engine:     e,
		sem:        make(chan struct{}, opts.MaxConcurrentTurns),
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Run starts an asynchronous turn and returns a run id for cancellation plus
// a channel that delivers exactly one Result before closing.
func (r *TurnRunner) Run(
	ctx context.Context,
	tenantID, sessionID string,
	sig core.NavigationSignal,
	candidates []core.Candidate,
) (string, <-chan Result, error) {
	select {
	case r.sem <- struct{}{}:
	default:
		return "", nil, fmt.Errorf("turn runner at capacity: %w", core.ErrSessionBusy)
	}

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	results := make(chan Result, 1)
	go func() {
		defer func() {
			<-r.sem
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
			close(results)
		}()

		plan, sess, err := r.engine.ProcessTurn(ctx, tenantID, sessionID, sig, candidates)
		if err != nil {
			r.logger.Warn("runner: run %s for session %s failed: %v", runID, sessionID, err)
		} else {
			r.logger.Debug("runner: run %s for session %s delivered %s", runID, sessionID, plan.ResponseType)
		}
		results <- Result{Plan: plan, Session: sess, Err: err}
	}()

	return runID, results, nil
}

// RunSync executes a turn synchronously. Convenience wrapper over Run.
func (r *TurnRunner) RunSync(
	ctx context.Context,
	tenantID, sessionID string,
	sig core.NavigationSignal,
	candidates []core.Candidate,
) (*core.ResponsePlan, *core.Session, error) {
	_, results, err := r.Run(ctx, tenantID, sessionID, sig, candidates)
	if err != nil {
		return nil, nil, err
	}
	res := <-results
	return res.Plan, res.Session, res.Err
}

// Cancel aborts an in-flight run by id. A run that already entered turn
// processing finishes and persists regardless; cancellation only stops runs
// still waiting to start. Returns ErrNotFound for unknown or completed runs.
func (r *TurnRunner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s: %w", runID, core.ErrNotFound)
	}
	cancel()
	return nil
}

// Active returns the number of runs currently in flight.
func (r *TurnRunner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}
