package testutil

import (
	"github.com/convoworks/scenariomesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	s := NewSessionBuilder("acme", "sess-1").
//		Active("onboarding", "welcome", 2).
//		Var("name", "Ada").
//		Build()
//
// Chain only what you need; the result is a valid active session.
type SessionBuilder struct {
	session *core.Session
}

// NewSessionBuilder creates a builder for an active session.
func NewSessionBuilder(tenantID, sessionID string) *SessionBuilder {
	return &SessionBuilder{session: core.NewSession(tenantID, sessionID)}
}

// Active activates a scenario at the given step and version (chainable).
func (b *SessionBuilder) Active(scenarioID, stepID string, version int) *SessionBuilder {
	b.session.ActivateScenario(scenarioID, stepID, version)
	return b
}

// Var sets a session variable (chainable).
func (b *SessionBuilder) Var(name, value string) *SessionBuilder {
	b.session.SetVariable(name, value)
	return b
}

// Status overrides the lifecycle status (chainable).
func (b *SessionBuilder) Status(status core.SessionStatus) *SessionBuilder {
	b.session.Status = status
	return b
}

// Pending flags a pending migration (chainable).
func (b *SessionBuilder) Pending(scenarioID string, targetVersion int) *SessionBuilder {
	b.session.PendingMigration = &core.MigrationRef{ScenarioID: scenarioID, TargetVersion: targetVersion}
	return b
}

// Turns sets the turn counter (chainable).
func (b *SessionBuilder) Turns(n int) *SessionBuilder {
	b.session.TurnCount = n
	return b
}

// Build refreshes the checksum and returns the session.
func (b *SessionBuilder) Build() *core.Session {
	b.session.RefreshChecksum()
	return b.session
}

// GraphBuilder helps construct scenario graphs for tests. The first added
// step becomes the entry step unless Entry overrides it.
type GraphBuilder struct {
	graph *core.ScenarioGraph
}

// NewGraphBuilder creates a builder for one scenario version.
func NewGraphBuilder(scenarioID string, version int) *GraphBuilder {
	return &GraphBuilder{graph: &core.ScenarioGraph{ID: scenarioID, Version: version}}
}

// Entry sets the entry step id (chainable).
func (b *GraphBuilder) Entry(stepID string) *GraphBuilder {
	b.graph.EntryStepID = stepID
	return b
}

// Step appends a step (chainable).
func (b *GraphBuilder) Step(step core.Step) *GraphBuilder {
	if b.graph.EntryStepID == "" {
		b.graph.EntryStepID = step.ID
	}
	b.graph.Steps = append(b.graph.Steps, step)
	return b
}

// Ask appends a step asking for one required field (chainable).
func (b *GraphBuilder) Ask(stepID, field string) *GraphBuilder {
	return b.Step(core.Step{
		ID:     stepID,
		Fields: []core.FieldDef{{Name: field, Required: true}},
	})
}

// Terminal appends a terminal step (chainable).
func (b *GraphBuilder) Terminal(stepID string) *GraphBuilder {
	return b.Step(core.Step{ID: stepID, Terminal: true})
}

// Build returns the graph.
func (b *GraphBuilder) Build() *core.ScenarioGraph {
	return b.graph
}

// PlanBuilder helps construct migration plans in a chosen status.
type PlanBuilder struct {
	plan *core.MigrationPlan
}

// NewPlanBuilder creates a DRAFT plan for one version hop.
func NewPlanBuilder(tenantID, scenarioID string, from, to int) *PlanBuilder {
	return &PlanBuilder{plan: &core.MigrationPlan{
		ID:          core.NewID(),
		TenantID:    tenantID,
		ScenarioID:  scenarioID,
		FromVersion: from,
		ToVersion:   to,
		Status:      core.PlanDraft,
	}}
}

// MapStep adds an unconditional step mapping (chainable).
func (b *PlanBuilder) MapStep(from, to string) *PlanBuilder {
	if b.plan.StepMap == nil {
		b.plan.StepMap = map[string]core.StepMapping{}
	}
	b.plan.StepMap[from] = core.StepMapping{To: to}
	return b
}

// MapVariable adds an unconditional variable rename (chainable).
func (b *PlanBuilder) MapVariable(from, to string) *PlanBuilder {
	if b.plan.VariableMap == nil {
		b.plan.VariableMap = map[string]core.VariableMapping{}
	}
	b.plan.VariableMap[from] = core.VariableMapping{To: to}
	return b
}

// Anchor sets the anchor policy for a removed step (chainable). Use the
// empty step id for the plan-wide default.
func (b *PlanBuilder) Anchor(stepID string, policy core.AnchorPolicy) *PlanBuilder {
	if b.plan.AnchorPolicies == nil {
		b.plan.AnchorPolicies = map[string]core.AnchorPolicy{}
	}
	b.plan.AnchorPolicies[stepID] = policy
	return b
}

// Deployed moves the plan through APPROVED into DEPLOYED (chainable).
func (b *PlanBuilder) Deployed() *PlanBuilder {
	if err := b.plan.Approve(); err != nil {
		panic(err)
	}
	if err := b.plan.Deploy(); err != nil {
		panic(err)
	}
	return b
}

// Build returns the plan.
func (b *PlanBuilder) Build() *core.MigrationPlan {
	return b.plan
}
