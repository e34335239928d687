package migration

import (
	"errors"
	"fmt"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/logging"
)

// Executor applies pending just-in-time migrations to a live session at turn
// start, inside the session lock's critical section. Application is
// all-or-nothing: every mutation happens on a clone that replaces the session
// only when the whole transformation succeeded, so a failure can never leave
// a session half-migrated (whose step id may exist in neither version).
type Executor struct {
	archive core.ArchiveStore
	plans   core.PlanStore
	gapFill *GapFill
	audit   core.AuditRecorder
	logger  logging.Logger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// GapFill defaults to a service with no derivers.
	GapFill *GapFill
	// Audit defaults to NoOpAuditRecorder.
	Audit core.AuditRecorder
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewExecutor creates an Executor over the given archive and plan stores.
func NewExecutor(archive core.ArchiveStore, plans core.PlanStore, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		GapFill: NewGapFill(),
		Audit:   core.NoOpAuditRecorder{},
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		archive: archive,
		plans:   plans,
		gapFill: opts.GapFill,
		audit:   opts.Audit,
		logger:  opts.Logger,
	}
}

// Apply checks the session's staleness and migrates every active scenario
// that has a contiguous chain of DEPLOYED plans ahead of it. Returns whether
// any migration was applied.
//
// Failure semantics match the turn's error taxonomy: a MigrationChainError is
// returned with the session untouched and still flagged, so the turn proceeds
// un-migrated and the next turn retries; consistency problems are logged and
// the affected scenario is left on its old version.
func (e *Executor) Apply(s *core.Session) (bool, error) {
	targets, stale := e.targetVersions(s)
	if !stale {
		if s.ScenarioChecksum != core.ActiveSetChecksum(s.ActiveScenarios) {
			// Checksum drifted without a version change; repair quietly.
			e.logger.Warn("migration: stale checksum for session %s repaired", s.ID)
			s.RefreshChecksum()
		}
		s.PendingMigration = nil
		return false, nil
	}

	work := s.Clone()
	migrated := false
	gapFilled := false
	details := make([]map[string]any, 0, len(targets))

	for _, as := range s.ActiveScenarios {
		target, ok := targets[as.ScenarioID]
		if !ok || target <= as.Version {
			continue
		}

		chain, err := e.plans.DeployedChain(s.TenantID, as.ScenarioID, as.Version)
		if err != nil {
			return false, fmt.Errorf("load deployed plans for %s: %w", as.ScenarioID, err)
		}
		chain = truncateChain(chain, s.PendingMigration, as.ScenarioID)
		if len(chain) == 0 {
			// Newer version exists but no deployed path reaches it yet.
			continue
		}

		comp, err := Compose(chain)
		if err != nil {
			// Bad chain is a deployment problem: surface it, leave the
			// session untouched and flagged for the next turn.
			return false, err
		}
		if !comp.AppliesTo(work) {
			e.logger.Debug("migration: session %s out of scope for %s chain", s.ID, as.ScenarioID)
			continue
		}

		res, err := comp.ResolveStep(as.StepID, work, func(version int) (string, error) {
			g, err := e.archive.Get(s.TenantID, as.ScenarioID, version)
			if err != nil {
				return "", err
			}
			return g.EntryStepID, nil
		})
		if err != nil {
			var warn *core.ConsistencyWarning
			if errors.As(err, &warn) {
				e.logger.Warn("migration: %v; scenario %s left at v%d", warn, as.ScenarioID, as.Version)
				continue
			}
			return false, err
		}

		comp.RemapVariables(work)

		if res.Deactivate {
			work.DeactivateScenario(as.ScenarioID)
		} else {
			entry := work.ActiveScenario(as.ScenarioID)
			entry.StepID = res.StepID
			entry.Version = comp.ToVersion

			if gaps := e.fillStepGaps(work, as.ScenarioID, comp.ToVersion, res.StepID); gaps {
				gapFilled = true
			}
		}

		migrated = true
		details = append(details, map[string]any{
			"scenario_id": as.ScenarioID,
			"old_version": as.Version,
			"new_version": comp.ToVersion,
			"anchored":    res.Anchored,
			"deactivated": res.Deactivate,
		})
		e.logger.Debug("migration: %s v%d→v%d for session %s", as.ScenarioID, as.Version, comp.ToVersion, s.ID)
	}

	work.PendingMigration = nil
	work.RefreshChecksum()
	s.Restore(work)

	if migrated {
		e.audit.Record(core.AuditSessionMigrated, map[string]any{
			"tenant_id":  s.TenantID,
			"session_id": s.ID,
			"scenarios":  details,
			"gap_filled": gapFilled,
		})
	}
	return migrated, nil
}

// targetVersions resolves the latest archived version per active scenario and
// reports whether any scenario is behind.
func (e *Executor) targetVersions(s *core.Session) (map[string]int, bool) {
	targets := map[string]int{}
	stale := false
	for _, as := range s.ActiveScenarios {
		latest, err := e.archive.Latest(s.TenantID, as.ScenarioID)
		if err != nil {
			e.logger.Warn("migration: no archived versions for %s: %v", as.ScenarioID, err)
			targets[as.ScenarioID] = as.Version
			continue
		}
		targets[as.ScenarioID] = latest.Version
		if latest.Version > as.Version {
			stale = true
		}
	}
	return targets, stale
}

// fillStepGaps runs gap-fill against the migrated step's field definitions.
// Reports whether anything needed filling.
func (e *Executor) fillStepGaps(work *core.Session, scenarioID string, version int, stepID string) bool {
	graph, err := e.archive.Get(work.TenantID, scenarioID, version)
	if err != nil {
		e.logger.Warn("migration: missing archive %s@%d for gap fill: %v", scenarioID, version, err)
		return false
	}
	step, ok := graph.Step(stepID)
	if !ok {
		e.logger.Warn("migration: step %q not in %s@%d after mapping", stepID, scenarioID, version)
		return false
	}
	return len(e.gapFill.Fill(work, scenarioID, step)) > 0
}

// truncateChain honors an explicit pending-migration target version by
// cutting the chain after the plan that reaches it.
func truncateChain(chain []*core.MigrationPlan, pending *core.MigrationRef, scenarioID string) []*core.MigrationPlan {
	if pending == nil || pending.ScenarioID != scenarioID || pending.TargetVersion <= 0 {
		return chain
	}
	for i, p := range chain {
		if p.ToVersion >= pending.TargetVersion {
			return chain[:i+1]
		}
	}
	return chain
}
