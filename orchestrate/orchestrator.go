// Package orchestrate advances every active scenario of a session one step
// per turn, collects their contributions and merges them into the turn's
// single response plan.
package orchestrate

import (
	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/logging"
	"github.com/convoworks/scenariomesh/selection"
)

// Orchestrator runs each active scenario's step state machine. It never
// chooses transitions itself: the upstream intent collaborator supplies the
// navigation signal, and the orchestrator applies the matching transition
// from the current step.
type Orchestrator struct {
	archive  core.ArchiveStore
	strategy selection.Strategy
	minK     int
	maxK     int
	logger   logging.Logger
}

// Options configures an Orchestrator.
type Options struct {
	// Strategy filters the ranked rule candidates; defaults to Elbow.
	Strategy selection.Strategy
	// MinK / MaxK bound the adaptive selection. Defaults: 1 and 5.
	MinK int
	MaxK int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// New creates an Orchestrator over the given scenario archive.
func New(archive core.ArchiveStore, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Strategy: selection.NewElbow(),
		MinK:     1,
		MaxK:     5,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		archive:  archive,
		strategy: opts.Strategy,
		minK:     opts.MinK,
		maxK:     opts.MaxK,
		logger:   opts.Logger,
	}
}

// Advance applies the navigation signal to every active scenario and collects
// one contribution per scenario that remains active. It also returns the
// adaptively selected rule candidates so the plan builder can union their
// constraints.
//
// Candidate validation happens before any session mutation, so a caller bug
// (unsorted input) fails fast without touching state.
func (o *Orchestrator) Advance(s *core.Session, sig core.NavigationSignal, candidates []core.Candidate) ([]core.Contribution, []core.Candidate, error) {
	selected, err := o.strategy.Select(candidates, o.minK, o.maxK)
	if err != nil {
		return nil, nil, err
	}

	for name, value := range sig.Entities {
		s.SetVariable(name, value)
	}

	turn := s.TurnCount + 1
	for _, c := range selected {
		s.RecordRuleFire(c.Item, turn)
	}

	if sig.Kind == core.SignalStart && sig.TargetScenarioID != "" {
		o.activate(s, sig.TargetScenarioID)
	}

	active := make([]core.ActiveScenario, len(s.ActiveScenarios))
	copy(active, s.ActiveScenarios)

	var contributions []core.Contribution
	for _, as := range active {
		step, ok := o.currentStep(s, as)
		if !ok {
			// Post-migration hole: degrade to NONE, never fail the turn.
			contributions = append(contributions, core.Contribution{
				ScenarioID: as.ScenarioID,
				Type:       core.ContributionNone,
			})
			continue
		}

		step, alive := o.transition(s, as.ScenarioID, step, sig)
		if !alive {
			continue
		}
		contributions = append(contributions, o.contribute(s, as.ScenarioID, step))
	}

	s.RefreshChecksum()
	return contributions, selected, nil
}

// activate starts a scenario at the latest published version's entry step.
func (o *Orchestrator) activate(s *core.Session, scenarioID string) {
	if s.ActiveScenario(scenarioID) != nil {
		return
	}
	graph, err := o.archive.Latest(s.TenantID, scenarioID)
	if err != nil {
		o.logger.Warn("orchestrate: cannot start %s: %v", scenarioID, err)
		return
	}
	s.ActivateScenario(graph.ID, graph.EntryStepID, graph.Version)
	o.logger.Debug("orchestrate: started %s@%d for session %s", graph.ID, graph.Version, s.ID)
}

// currentStep loads the scenario's pinned graph version and resolves the
// session's current step. Misses are consistency warnings, not turn failures.
func (o *Orchestrator) currentStep(s *core.Session, as core.ActiveScenario) (core.Step, bool) {
	graph, err := o.archive.Get(s.TenantID, as.ScenarioID, as.Version)
	if err != nil {
		o.logger.Warn("orchestrate: %v", &core.ConsistencyWarning{
			ScenarioID: as.ScenarioID,
			StepID:     as.StepID,
			Reason:     "scenario version not archived",
		})
		return core.Step{}, false
	}
	step, ok := graph.Step(as.StepID)
	if !ok {
		o.logger.Warn("orchestrate: %v", &core.ConsistencyWarning{
			ScenarioID: as.ScenarioID,
			StepID:     as.StepID,
			Reason:     "step missing after migration",
		})
		return core.Step{}, false
	}
	return step, true
}

// transition applies the signal's transition from the current step. Returns
// the step the scenario rests on for this turn and whether the scenario is
// still participating.
func (o *Orchestrator) transition(s *core.Session, scenarioID string, step core.Step, sig core.NavigationSignal) (core.Step, bool) {
	entry := s.ActiveScenario(scenarioID)

	if next, ok := step.Transitions[sig.Kind]; ok {
		graph, err := o.archive.Get(s.TenantID, scenarioID, entry.Version)
		if err == nil {
			if nextStep, found := graph.Step(next); found {
				entry.StepID = next
				step = nextStep
			}
		}
	} else if sig.Kind == core.SignalExit && (sig.TargetScenarioID == "" || sig.TargetScenarioID == scenarioID) {
		// EXIT with no declared transition ends participation directly.
		s.DeactivateScenario(scenarioID)
		return core.Step{}, false
	}

	if step.Terminal {
		s.DeactivateScenario(scenarioID)
		return core.Step{}, false
	}
	return step, true
}

// contribute derives the scenario's contribution as a pure function of the
// resting step and session variables. Gap asks scheduled by migration take
// precedence over the step's own missing fields.
func (o *Orchestrator) contribute(s *core.Session, scenarioID string, step core.Step) core.Contribution {
	c := core.Contribution{
		ScenarioID:  scenarioID,
		Priority:    step.Priority,
		MustInclude: append([]string(nil), step.MustInclude...),
		MustAvoid:   append([]string(nil), step.MustAvoid...),
	}

	var askFields []string
	for _, name := range s.TakeGapAsks(scenarioID) {
		if _, ok := s.Variable(name); !ok {
			askFields = append(askFields, name)
		}
	}
	for _, f := range step.Fields {
		if !f.Required {
			continue
		}
		if _, ok := s.Variable(f.Name); ok {
			continue
		}
		if !contains(askFields, f.Name) {
			askFields = append(askFields, f.Name)
		}
	}

	switch {
	case len(askFields) > 0:
		c.Type = core.ContributionAsk
		c.AskFields = askFields
	case step.ConfirmAction != "":
		c.Type = core.ContributionConfirm
		c.ConfirmAction = step.ConfirmAction
	case len(step.ToolHints) > 0:
		c.Type = core.ContributionActionHint
		c.ToolHints = append([]string(nil), step.ToolHints...)
	case step.TemplateID != "":
		c.Type = core.ContributionInform
		c.TemplateID = step.TemplateID
	default:
		c.Type = core.ContributionNone
	}
	return c
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
