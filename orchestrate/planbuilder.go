package orchestrate

import (
	"github.com/convoworks/scenariomesh/core"
)

// TieBreaker reports whether contribution a should beat the current winner b
// for a session. Builders scan contributions in active-scenario insertion
// order, so returning false on ties keeps the earliest contributor.
type TieBreaker func(s *core.Session, a, b core.Contribution) bool

// DefaultTieBreak is the documented conflict policy: higher priority wins;
// on equal priority the session's primary scenario wins; otherwise the
// earlier activation (insertion order) stands.
func DefaultTieBreak(s *core.Session, a, b core.Contribution) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ScenarioID == s.PrimaryScenarioID && b.ScenarioID != s.PrimaryScenarioID
}

// Builder merges the turn's contributions and selected rule constraints into
// one ResponsePlan. At most one scenario's ASK survives into the plan — a
// session never asks two unrelated questions in one turn — but constraint
// text is unioned across every contributor, winning or not, because safety
// constraints must never be silently dropped.
type Builder struct {
	tieBreak TieBreaker
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// TieBreak defaults to DefaultTieBreak. It is deployment policy, not a
	// core invariant; any deterministic ordering is acceptable.
	TieBreak TieBreaker
}

// NewBuilder creates a Builder.
func NewBuilder(optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{TieBreak: DefaultTieBreak}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{tieBreak: opts.TieBreak}
}

// Build produces the turn's single merged ResponsePlan.
func (b *Builder) Build(turnID string, s *core.Session, contributions []core.Contribution, rules []core.Candidate) *core.ResponsePlan {
	plan := &core.ResponsePlan{
		TurnID:        turnID,
		Contributions: contributions,
	}

	var asks, confirms, actions, informs []core.Contribution
	for _, c := range contributions {
		switch c.Type {
		case core.ContributionAsk:
			asks = append(asks, c)
		case core.ContributionConfirm:
			confirms = append(confirms, c)
		case core.ContributionActionHint:
			actions = append(actions, c)
		case core.ContributionInform:
			informs = append(informs, c)
		}
		plan.MustInclude = union(plan.MustInclude, c.MustInclude)
		plan.MustAvoid = union(plan.MustAvoid, c.MustAvoid)
	}
	for _, r := range rules {
		plan.MustInclude = union(plan.MustInclude, r.MustInclude)
		plan.MustAvoid = union(plan.MustAvoid, r.MustAvoid)
	}

	for _, c := range informs {
		if c.TemplateID != "" {
			plan.TemplateIDs = append(plan.TemplateIDs, c.TemplateID)
		}
	}

	switch {
	case len(asks) > 0:
		winner := b.pick(s, asks)
		plan.WinnerScenarioID = winner.ScenarioID
		plan.AskFields = winner.AskFields
		if len(informs) > 0 {
			plan.ResponseType = core.ResponseMixed
		} else {
			plan.ResponseType = core.ResponseAsk
		}
	case len(confirms) > 0:
		winner := b.pick(s, confirms)
		plan.WinnerScenarioID = winner.ScenarioID
		plan.ConfirmAction = winner.ConfirmAction
		plan.ResponseType = core.ResponseConfirm
	case len(actions) > 0:
		for _, c := range actions {
			plan.ToolHints = union(plan.ToolHints, c.ToolHints)
		}
		if len(informs) > 0 {
			plan.ResponseType = core.ResponseMixed
		} else {
			plan.ResponseType = core.ResponseAnswer
		}
	default:
		plan.ResponseType = core.ResponseAnswer
	}
	return plan
}

func (b *Builder) pick(s *core.Session, contributions []core.Contribution) core.Contribution {
	winner := contributions[0]
	for _, c := range contributions[1:] {
		if b.tieBreak(s, c, winner) {
			winner = c
		}
	}
	return winner
}

// union appends the missing elements of add to base, preserving first-seen
// order so constraint text stays stable across turns.
func union(base, add []string) []string {
	for _, v := range add {
		if !contains(base, v) {
			base = append(base, v)
		}
	}
	return base
}
