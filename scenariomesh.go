// Package scenariomesh provides a high-level façade over the turn engine and
// service abstractions (sessions, scenario archive, migration plans, audit &
// logging) for building multi-scenario conversational agents. Most
// applications interact with this package by:
//  1. Creating a ScenarioMesh via New() (optionally overriding default in-memory services)
//  2. Publishing scenario graph versions and deploying migration plans
//  3. Processing turns (ProcessTurn) or classifying raw utterances first (ProcessUtterance)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations and a structured logger.
package scenariomesh

import (
	"context"

	"github.com/convoworks/scenariomesh/archive"
	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/engine"
	"github.com/convoworks/scenariomesh/intent"
	"github.com/convoworks/scenariomesh/logging"
	"github.com/convoworks/scenariomesh/migration"
	"github.com/convoworks/scenariomesh/session"
)

// Options configures the ScenarioMesh instance.
type Options struct {
	// EngineConfig tunes lock policy, save retries and selection bounds.
	EngineConfig engine.Config

	// Stores (default to in-memory implementations if not provided).
	SessionStore core.SessionStore
	ArchiveStore core.ArchiveStore
	PlanStore    core.PlanStore

	// Sensor classifies raw utterances for ProcessUtterance. Optional;
	// callers that compute NavigationSignals themselves never need one.
	Sensor intent.Sensor

	// GapFill supplies values migrated steps need (derivers, defaults).
	GapFill *migration.GapFill

	// Audit receives fire-and-forget engine events (defaults to NoOp).
	Audit core.AuditRecorder

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ScenarioMesh is the high-level façade aggregating the engine and services.
type ScenarioMesh struct {
	opts    Options
	engine  *engine.Engine
	planner *migration.Planner
}

// New creates a new ScenarioMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *ScenarioMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		ArchiveStore: archive.NewInMemoryArchive(),
		PlanStore:    archive.NewInMemoryPlanStore(),
		GapFill:      migration.NewGapFill(),
		Audit:        core.NoOpAuditRecorder{},
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.ArchiveStore = opts.ArchiveStore
		o.PlanStore = opts.PlanStore
		o.GapFill = opts.GapFill
		o.Audit = opts.Audit
		o.Logger = opts.Logger
	})

	return &ScenarioMesh{
		opts:    opts,
		engine:  e,
		planner: migration.NewPlanner(opts.Logger),
	}
}

// Engine exposes the underlying engine for advanced wiring (runner, advisory
// locks).
func (m *ScenarioMesh) Engine() *engine.Engine { return m.engine }

// PublishScenario archives a new immutable scenario graph version.
func (m *ScenarioMesh) PublishScenario(tenantID string, graph *core.ScenarioGraph) error {
	return m.opts.ArchiveStore.Put(tenantID, graph)
}

// PlanMigration computes a DRAFT migration plan between two archived versions.
func (m *ScenarioMesh) PlanMigration(tenantID, scenarioID string, fromVersion, toVersion int, ov migration.Overrides) (*core.MigrationPlan, error) {
	from, err := m.opts.ArchiveStore.Get(tenantID, scenarioID, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := m.opts.ArchiveStore.Get(tenantID, scenarioID, toVersion)
	if err != nil {
		return nil, err
	}
	return m.planner.Plan(tenantID, from, to, ov)
}

// DeployPlan approves and deploys a plan, then flags every matching session
// lazily: sessions migrate just-in-time on their next turn, so deployment
// cost does not scale with the number of live sessions.
func (m *ScenarioMesh) DeployPlan(plan *core.MigrationPlan) error {
	if plan.Status == core.PlanDraft {
		if err := plan.Approve(); err != nil {
			return err
		}
	}
	if err := plan.Deploy(); err != nil {
		return err
	}
	return m.opts.PlanStore.Put(plan)
}

// CreateSession allocates a new session for a tenant.
func (m *ScenarioMesh) CreateSession(tenantID, sessionID string) (*core.Session, error) {
	return m.opts.SessionStore.Create(tenantID, sessionID)
}

// ProcessTurn advances one session by one turn with a precomputed signal.
func (m *ScenarioMesh) ProcessTurn(ctx context.Context, tenantID, sessionID string, sig core.NavigationSignal, candidates []core.Candidate) (*core.ResponsePlan, *core.Session, error) {
	return m.engine.ProcessTurn(ctx, tenantID, sessionID, sig, candidates)
}

// ProcessUtterance classifies a raw utterance with the configured Sensor and
// processes the resulting turn. Classification happens before the session
// lock is taken, so a slow model call never blocks other turns for the
// session.
func (m *ScenarioMesh) ProcessUtterance(ctx context.Context, tenantID, sessionID, utterance string, candidates []core.Candidate) (*core.ResponsePlan, *core.Session, error) {
	if m.opts.Sensor == nil {
		return nil, nil, &core.ValidationError{Field: "sensor", Reason: "no intent sensor configured"}
	}

	sess, err := m.opts.SessionStore.Load(tenantID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	active := make([]string, 0, len(sess.ActiveScenarios))
	for _, as := range sess.ActiveScenarios {
		active = append(active, as.ScenarioID)
	}

	sig, err := m.opts.Sensor.Sense(ctx, utterance, active)
	if err != nil {
		return nil, nil, err
	}
	return m.engine.ProcessTurn(ctx, tenantID, sessionID, sig, candidates)
}
