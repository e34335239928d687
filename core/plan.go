package core

import (
	"fmt"
	"time"
)

// PlanStatus is the lifecycle state of a migration plan. Transitions are
// forward-only: DRAFT → APPROVED → DEPLOYED, or any non-terminal state →
// REJECTED. DEPLOYED and REJECTED are terminal.
type PlanStatus string

const (
	// PlanDraft plans are freshly computed and still editable.
	PlanDraft PlanStatus = "DRAFT"
	// PlanApproved plans passed review and may be composed into chains.
	PlanApproved PlanStatus = "APPROVED"
	// PlanDeployed plans are live and immutable; the executor applies them.
	PlanDeployed PlanStatus = "DEPLOYED"
	// PlanRejected plans are discarded and never applied.
	PlanRejected PlanStatus = "REJECTED"
)

// CanTransition reports whether a status change is permitted.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	switch s {
	case PlanDraft:
		return to == PlanApproved || to == PlanRejected
	case PlanApproved:
		return to == PlanDeployed || to == PlanRejected
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s PlanStatus) Terminal() bool { return s == PlanDeployed || s == PlanRejected }

// AnchorAction is the fallback applied when a session's current step has no
// mapping in a plan.
type AnchorAction string

const (
	// AnchorSnapToStep moves the session to the policy's TargetStepID in the
	// new version (typically the nearest surviving ancestor).
	AnchorSnapToStep AnchorAction = "snap_to_step"
	// AnchorRestart moves the session to the new version's entry step.
	AnchorRestart AnchorAction = "restart"
	// AnchorAbort ends the scenario's participation in the session.
	AnchorAbort AnchorAction = "abort"
)

// AnchorPolicy is the declared fallback for one unmapped step.
type AnchorPolicy struct {
	Action       AnchorAction `json:"action"`
	TargetStepID string       `json:"target_step_id,omitempty"`
}

// MappingCondition gates a mapping entry on a session variable value. A nil
// condition always applies.
type MappingCondition struct {
	Variable string `json:"variable"`
	Equals   string `json:"equals"`
}

// Matches reports whether the session satisfies the condition.
func (c *MappingCondition) Matches(s *Session) bool {
	if c == nil {
		return true
	}
	v, ok := s.Variable(c.Variable)
	return ok && fmt.Sprintf("%v", v) == c.Equals
}

// StepMapping maps an old-version step id to its new-version target.
type StepMapping struct {
	To string            `json:"to"`
	If *MappingCondition `json:"if,omitempty"`
}

// VariableMapping renames an old-version variable to its new-version name.
type VariableMapping struct {
	To string            `json:"to"`
	If *MappingCondition `json:"if,omitempty"`
}

// ScopeFilter restricts which sessions a plan applies to. Empty fields match
// everything.
type ScopeFilter struct {
	Statuses         []SessionStatus `json:"statuses,omitempty"`
	SessionIDPrefixes []string       `json:"session_id_prefixes,omitempty"`
}

// Matches reports whether the session falls inside the plan's scope.
func (f ScopeFilter) Matches(s *Session) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if s.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.SessionIDPrefixes) > 0 {
		for _, p := range f.SessionIDPrefixes {
			if len(s.ID) >= len(p) && s.ID[:len(p)] == p {
				return true
			}
		}
		return false
	}
	return true
}

// MigrationPlan declares how in-flight sessions move from one published
// scenario version to the next. Plans are created in DRAFT by the planner,
// mutated only through Approve/Deploy/Reject, and immutable once DEPLOYED.
//
// AnchorPolicies is keyed by old step id; the empty key, when present, is the
// default policy for any unmapped step without its own entry.
type MigrationPlan struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	ScenarioID  string `json:"scenario_id"`
	FromVersion int    `json:"from_version"`
	ToVersion   int    `json:"to_version"`

	Status PlanStatus `json:"status"`

	StepMap        map[string]StepMapping     `json:"step_map"`
	VariableMap    map[string]VariableMapping `json:"variable_map"`
	AnchorPolicies map[string]AnchorPolicy    `json:"anchor_policies"`
	Scope          ScopeFilter                `json:"scope"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func (p *MigrationPlan) transition(to PlanStatus) error {
	if !p.Status.CanTransition(to) {
		return &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("plan %s cannot move from %s to %s", p.ID, p.Status, to),
		}
	}
	p.Status = to
	p.Updated = time.Now().UTC()
	return nil
}

// Approve moves the plan from DRAFT to APPROVED.
func (p *MigrationPlan) Approve() error { return p.transition(PlanApproved) }

// Deploy moves the plan from APPROVED to DEPLOYED (terminal).
func (p *MigrationPlan) Deploy() error { return p.transition(PlanDeployed) }

// Reject discards a non-terminal plan (terminal).
func (p *MigrationPlan) Reject() error { return p.transition(PlanRejected) }

// MapStep resolves the target step id for an old step, honoring conditional
// entries against the session. The second return distinguishes "mapped" from
// "fall back to anchor policy".
func (p *MigrationPlan) MapStep(stepID string, s *Session) (string, bool) {
	m, ok := p.StepMap[stepID]
	if !ok || !m.If.Matches(s) {
		return "", false
	}
	return m.To, true
}

// Anchor returns the anchor policy for an unmapped step: the step's own entry
// if declared, else the default (empty-key) policy.
func (p *MigrationPlan) Anchor(stepID string) (AnchorPolicy, bool) {
	if a, ok := p.AnchorPolicies[stepID]; ok {
		return a, true
	}
	a, ok := p.AnchorPolicies[""]
	return a, ok
}

// RemapVariables applies the plan's variable renames to the session,
// honoring conditional entries.
func (p *MigrationPlan) RemapVariables(s *Session) {
	for from, m := range p.VariableMap {
		if !m.If.Matches(s) {
			continue
		}
		s.RenameVariable(from, m.To)
	}
}

// PlanStore persists migration plans and resolves deployed chains.
type PlanStore interface {
	// Put stores or updates a plan keyed by ID.
	Put(plan *MigrationPlan) error

	// Get returns a plan by id, or ErrNotFound.
	Get(id string) (*MigrationPlan, error)

	// DeployedChain returns the DEPLOYED plans for a scenario starting at
	// fromVersion, ordered and contiguous (v→v+1, v+1→v+2, ...). The chain
	// stops at the first gap; an empty slice means the session is current.
	DeployedChain(tenantID, scenarioID string, fromVersion int) ([]*MigrationPlan, error)
}
