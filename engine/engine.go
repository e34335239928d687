// Package engine coordinates turn processing: per-session mutual exclusion,
// just-in-time migration, scenario orchestration, response plan merging and
// optimistic persistence. It is the single entry point the serving layer
// calls per turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/convoworks/scenariomesh/archive"
	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/logging"
	"github.com/convoworks/scenariomesh/migration"
	"github.com/convoworks/scenariomesh/orchestrate"
	"github.com/convoworks/scenariomesh/selection"
	"github.com/convoworks/scenariomesh/session"
)

// Options configures an Engine instance using the functional options
// pattern. All services default to in-memory implementations suitable for
// development and testing; production deployments supply durable stores.
type Options struct {
	// Config contains operational parameters (lock policy, retries, bounds).
	Config Config

	// SessionStore persists session aggregates. Defaults to in-memory.
	SessionStore core.SessionStore
	// ArchiveStore resolves published scenario versions. Defaults to in-memory.
	ArchiveStore core.ArchiveStore
	// PlanStore resolves deployed migration chains. Defaults to in-memory.
	PlanStore core.PlanStore

	// GapFill supplies values migrated steps need. Defaults to no derivers.
	GapFill *migration.GapFill
	// Audit receives fire-and-forget engine events. Defaults to NoOp.
	Audit core.AuditRecorder
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Strategy is the adaptive candidate selection. Defaults to Elbow.
	Strategy selection.Strategy
	// TieBreak overrides the contribution conflict policy.
	TieBreak orchestrate.TieBreaker
}

// Engine processes turns. Concurrent turns for different sessions run in
// parallel; turns for the same session are strictly serialized by a
// per-session exclusive lock held from before migration until persistence
// completes.
type Engine struct {
	config Config

	sessions core.SessionStore
	archive  core.ArchiveStore
	plans    core.PlanStore

	executor     *migration.Executor
	orchestrator *orchestrate.Orchestrator
	builder      *orchestrate.Builder

	audit  core.AuditRecorder
	logger logging.Logger

	sessionLocks  *lockTable
	advisoryLocks *lockTable
}

// New creates an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		ArchiveStore: archive.NewInMemoryArchive(),
		PlanStore:    archive.NewInMemoryPlanStore(),
		GapFill:      migration.NewGapFill(),
		Audit:        core.NoOpAuditRecorder{},
		Logger:       logging.NoOpLogger{},
		Strategy:     selection.NewElbow(),
		TieBreak:     orchestrate.DefaultTieBreak,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	executor := migration.NewExecutor(opts.ArchiveStore, opts.PlanStore, func(o *migration.ExecutorOptions) {
		o.GapFill = opts.GapFill
		o.Audit = opts.Audit
		o.Logger = opts.Logger
	})
	orchestrator := orchestrate.New(opts.ArchiveStore, func(o *orchestrate.Options) {
		o.Strategy = opts.Strategy
		o.MinK = opts.Config.MinCandidates
		o.MaxK = opts.Config.MaxCandidates
		o.Logger = opts.Logger
	})
	builder := orchestrate.NewBuilder(func(o *orchestrate.BuilderOptions) {
		o.TieBreak = opts.TieBreak
	})

	return &Engine{
		config:        opts.Config,
		sessions:      opts.SessionStore,
		archive:       opts.ArchiveStore,
		plans:         opts.PlanStore,
		executor:      executor,
		orchestrator:  orchestrator,
		builder:       builder,
		audit:         opts.Audit,
		logger:        opts.Logger,
		sessionLocks:  newLockTable(),
		advisoryLocks: newLockTable(),
	}
}

// ProcessTurn advances one session by one turn: acquire the session lock,
// apply any pending migration, orchestrate active scenarios, merge
// contributions into a ResponsePlan and persist.
//
// Cancellation is honored only while waiting for the session lock. Once turn
// processing starts, state mutation and persistence run to completion even
// if ctx is cancelled: a customer-visible turn must never be left partially
// migrated because the client disconnected.
func (e *Engine) ProcessTurn(ctx context.Context, tenantID, sessionID string, sig core.NavigationSignal, candidates []core.Candidate) (*core.ResponsePlan, *core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	release, err := e.sessionLocks.acquire(ctx, tenantID+"/"+sessionID, e.config.LockPolicy, e.config.LockWaitTimeout)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt <= e.config.SaveRetries; attempt++ {
		plan, sess, err := e.runTurn(tenantID, sessionID, sig, candidates)
		if err == nil {
			return plan, sess, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, nil, err
		}
		lastErr = err
		e.logger.Warn("engine: persistence conflict for session %s, retrying against fresh state", sessionID)
	}
	return nil, nil, lastErr
}

// runTurn is one attempt of the turn pipeline against freshly loaded state.
func (e *Engine) runTurn(tenantID, sessionID string, sig core.NavigationSignal, candidates []core.Candidate) (*core.ResponsePlan, *core.Session, error) {
	start := time.Now()

	sess, err := e.sessions.Load(tenantID, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.Status != core.SessionActive {
		return nil, nil, &core.ValidationError{
			Field:  "session",
			Reason: fmt.Sprintf("session %s is %s, not active", sessionID, sess.Status),
		}
	}
	expectedTurn := sess.TurnCount
	turnID := core.NewID()

	// Migration failures degrade to an un-migrated turn; the session keeps
	// its pending flag so the next turn retries.
	if _, err := e.executor.Apply(sess); err != nil {
		e.logger.Warn("engine: migration skipped for session %s: %v", sessionID, err)
	}

	contributions, selected, err := e.orchestrator.Advance(sess, sig, candidates)
	if err != nil {
		// Caller bug (unsorted candidates): fail fast, nothing persisted.
		return nil, nil, err
	}

	plan := e.builder.Build(turnID, sess, contributions, selected)

	sess.TurnCount++
	if err := e.sessions.Save(sess, expectedTurn); err != nil {
		return nil, nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}

	e.audit.Record(core.AuditTurnProcessed, map[string]any{
		"tenant_id":     tenantID,
		"session_id":    sessionID,
		"turn_id":       turnID,
		"turn":          sess.TurnCount,
		"response_type": string(plan.ResponseType),
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	e.logger.Debug("engine: turn %s for session %s -> %s", turnID, sessionID, plan.ResponseType)
	return plan, sess, nil
}

// WithAdvisoryLock runs fn under an advisory lock scoped to a proactive
// task's execution id. Proactive (agent-initiated) work deliberately bypasses
// the session turn lock: it must neither block nor be blocked by
// customer-facing latency, tolerating eventual consistency with live
// session state instead.
func (e *Engine) WithAdvisoryLock(executionID string, fn func() error) error {
	release, err := e.advisoryLocks.acquire(context.Background(), executionID, LockPolicyReject, 0)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
