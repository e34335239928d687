package migration

import (
	"fmt"
	"time"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/logging"
)

// Overrides carries the caller-declared parts of a migration plan. Renamed or
// merged steps must be declared explicitly here: the planner never fuzzy
// matches, because an ambiguous automatic mapping is a correctness risk for
// live sessions.
type Overrides struct {
	Steps          map[string]core.StepMapping
	Variables      map[string]core.VariableMapping
	AnchorPolicies map[string]core.AnchorPolicy
	Scope          core.ScopeFilter
}

// Planner computes DRAFT migration plans by diffing two archived versions of
// one scenario.
type Planner struct {
	logger logging.Logger
}

// NewPlanner creates a Planner. A nil logger falls back to NoOpLogger.
func NewPlanner(logger logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Planner{logger: logger}
}

// Plan diffs from → to and returns a MigrationPlan in DRAFT status.
//
// Steps present in both versions map 1:1 by id. Steps removed in the target
// version must be covered by an explicit override or an anchor policy;
// otherwise the plan would strand any session currently parked on them and
// planning fails with a ValidationError.
func (p *Planner) Plan(tenantID string, from, to *core.ScenarioGraph, ov Overrides) (*core.MigrationPlan, error) {
	if from == nil || to == nil {
		return nil, &core.ValidationError{Field: "graphs", Reason: "both versions are required"}
	}
	if from.ID != to.ID {
		return nil, &core.ValidationError{
			Field:  "scenario_id",
			Reason: fmt.Sprintf("a plan spans one scenario, got %q and %q", from.ID, to.ID),
		}
	}
	if from.Version >= to.Version {
		return nil, &core.ValidationError{
			Field:  "versions",
			Reason: fmt.Sprintf("from_version %d must be below to_version %d", from.Version, to.Version),
		}
	}

	stepMap := map[string]core.StepMapping{}
	_, hasDefaultAnchor := ov.AnchorPolicies[""]

	for _, step := range from.Steps {
		if m, ok := ov.Steps[step.ID]; ok {
			if _, exists := to.Step(m.To); !exists {
				return nil, &core.ValidationError{
					Field:  "step_map",
					Reason: fmt.Sprintf("override for %q targets step %q not in version %d", step.ID, m.To, to.Version),
				}
			}
			stepMap[step.ID] = m
			continue
		}
		if _, ok := to.Step(step.ID); ok {
			stepMap[step.ID] = core.StepMapping{To: step.ID}
			continue
		}
		// Removed step: a session parked here needs an anchor.
		if _, ok := ov.AnchorPolicies[step.ID]; !ok && !hasDefaultAnchor {
			return nil, &core.ValidationError{
				Field:  "anchor_policies",
				Reason: fmt.Sprintf("step %q removed in version %d with no mapping or anchor policy", step.ID, to.Version),
			}
		}
		p.logger.Debug("planner: step %s of %s@%d falls back to anchor policy", step.ID, from.ID, from.Version)
	}

	for name, m := range ov.Variables {
		if m.To == "" {
			return nil, &core.ValidationError{
				Field:  "variable_map",
				Reason: fmt.Sprintf("variable %q maps to an empty name", name),
			}
		}
	}

	anchors := map[string]core.AnchorPolicy{}
	for k, v := range ov.AnchorPolicies {
		if v.Action == core.AnchorSnapToStep {
			if _, ok := to.Step(v.TargetStepID); !ok {
				return nil, &core.ValidationError{
					Field:  "anchor_policies",
					Reason: fmt.Sprintf("anchor for %q targets step %q not in version %d", k, v.TargetStepID, to.Version),
				}
			}
		}
		anchors[k] = v
	}

	variables := map[string]core.VariableMapping{}
	for k, v := range ov.Variables {
		variables[k] = v
	}

	now := time.Now().UTC()
	return &core.MigrationPlan{
		ID:             core.NewID(),
		TenantID:       tenantID,
		ScenarioID:     from.ID,
		FromVersion:    from.Version,
		ToVersion:      to.Version,
		Status:         core.PlanDraft,
		StepMap:        stepMap,
		VariableMap:    variables,
		AnchorPolicies: anchors,
		Scope:          ov.Scope,
		Created:        now,
		Updated:        now,
	}, nil
}
