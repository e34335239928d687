package migration

import (
	"fmt"

	"github.com/convoworks/scenariomesh/core"
)

// Composite is N sequential migration plans composed into one transformation
// that behaves as if a single plan took the session directly from the lowest
// to the highest version.
type Composite struct {
	ScenarioID  string
	FromVersion int
	ToVersion   int

	plans []*core.MigrationPlan
}

// Compose validates a plan chain and wraps it for application. Plans must
// belong to one scenario, be at least APPROVED, and chain contiguously
// (v2→v3, v3→v4, ...); any other shape is a MigrationChainError.
func Compose(plans []*core.MigrationPlan) (*Composite, error) {
	if len(plans) == 0 {
		return nil, &core.ValidationError{Field: "plans", Reason: "chain must not be empty"}
	}
	first := plans[0]
	for i, p := range plans {
		if p.ScenarioID != first.ScenarioID {
			return nil, &core.MigrationChainError{
				ScenarioID: first.ScenarioID,
				Reason:     fmt.Sprintf("plan %s belongs to scenario %s", p.ID, p.ScenarioID),
			}
		}
		if p.Status != core.PlanApproved && p.Status != core.PlanDeployed {
			return nil, &core.MigrationChainError{
				ScenarioID: first.ScenarioID,
				Reason:     fmt.Sprintf("plan %s is %s, not approved or deployed", p.ID, p.Status),
			}
		}
		if i > 0 && p.FromVersion != plans[i-1].ToVersion {
			return nil, &core.MigrationChainError{
				ScenarioID: first.ScenarioID,
				Reason: fmt.Sprintf("gap between v%d and v%d: chain is not contiguous",
					plans[i-1].ToVersion, p.FromVersion),
			}
		}
	}
	return &Composite{
		ScenarioID:  first.ScenarioID,
		FromVersion: first.FromVersion,
		ToVersion:   plans[len(plans)-1].ToVersion,
		plans:       plans,
	}, nil
}

// AppliesTo reports whether every plan in the chain includes the session in
// its scope. A session excluded by any hop cannot pass through the chain.
func (c *Composite) AppliesTo(s *core.Session) bool {
	for _, p := range c.plans {
		if !p.Scope.Matches(s) {
			return false
		}
	}
	return true
}

// StepResolution is the outcome of resolving a step through the whole chain.
type StepResolution struct {
	// StepID is the resolved step in the chain's final version. Empty when
	// Deactivate is set.
	StepID string
	// Deactivate is set when an abort anchor ended the scenario's
	// participation mid-chain.
	Deactivate bool
	// Anchored is set when at least one hop had no mapping and fell back to
	// its anchor policy.
	Anchored bool
}

// ResolveStep maps a step id through every plan in sequence. A hop without a
// mapping applies that hop's anchor policy before continuing, so a gap
// mid-chain does not abort the composition. entryOf resolves a version's
// entry step for restart anchors.
func (c *Composite) ResolveStep(stepID string, s *core.Session, entryOf func(version int) (string, error)) (StepResolution, error) {
	res := StepResolution{StepID: stepID}
	for _, p := range c.plans {
		if target, ok := p.MapStep(res.StepID, s); ok {
			res.StepID = target
			continue
		}

		anchor, ok := p.Anchor(res.StepID)
		if !ok {
			return StepResolution{}, &core.ConsistencyWarning{
				ScenarioID: c.ScenarioID,
				StepID:     res.StepID,
				Reason:     fmt.Sprintf("no mapping or anchor in plan v%d→v%d", p.FromVersion, p.ToVersion),
			}
		}
		res.Anchored = true
		switch anchor.Action {
		case core.AnchorSnapToStep:
			res.StepID = anchor.TargetStepID
		case core.AnchorRestart:
			entry, err := entryOf(p.ToVersion)
			if err != nil {
				return StepResolution{}, fmt.Errorf("resolve entry step of %s@%d: %w", c.ScenarioID, p.ToVersion, err)
			}
			res.StepID = entry
		case core.AnchorAbort:
			return StepResolution{Deactivate: true, Anchored: true}, nil
		default:
			return StepResolution{}, &core.ConsistencyWarning{
				ScenarioID: c.ScenarioID,
				StepID:     res.StepID,
				Reason:     fmt.Sprintf("unknown anchor action %q", anchor.Action),
			}
		}
	}
	return res, nil
}

// RemapVariables applies every plan's variable renames in chain order.
func (c *Composite) RemapVariables(s *core.Session) {
	for _, p := range c.plans {
		p.RemapVariables(s)
	}
}
