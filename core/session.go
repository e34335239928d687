package core

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// SessionActive sessions accept turns.
	SessionActive SessionStatus = "active"
	// SessionPaused sessions are suspended but resumable.
	SessionPaused SessionStatus = "paused"
	// SessionCompleted sessions finished normally.
	SessionCompleted SessionStatus = "completed"
	// SessionAbandoned sessions were dropped by the user.
	SessionAbandoned SessionStatus = "abandoned"
)

// ActiveScenario is one entry of a session's ordered active set: which
// scenario, pinned to which published version, currently at which step.
type ActiveScenario struct {
	ScenarioID string `json:"scenario_id"`
	StepID     string `json:"step_id"`
	Version    int    `json:"version"`
}

// Variable is a session variable value with its last-write timestamp.
type Variable struct {
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GapAsk marks a variable a migrated step requires but the session never
// collected. Gap-fill records it; the orchestrator turns it into an ASK
// contribution on its next pass and clears the mark.
type GapAsk struct {
	ScenarioID string `json:"scenario_id"`
	Field      string `json:"field"`
}

// MigrationRef flags a pending just-in-time migration for one scenario.
// TargetVersion zero means "latest deployed"; the executor resolves the full
// deployed plan chain either way.
type MigrationRef struct {
	ScenarioID    string `json:"scenario_id"`
	TargetVersion int    `json:"target_version,omitempty"`
}

// Session is the single mutable aggregate for one conversation. Exactly one
// writer mutates a session per turn — the engine's per-session lock enforces
// this — so the type itself carries no lock. Stores hand out clones; callers
// must treat a loaded session as exclusively theirs until saved.
type Session struct {
	TenantID string `json:"tenant_id"`
	ID       string `json:"id"`

	// ActiveScenarios is ordered by activation (insertion order is the final
	// contribution tie-break). PrimaryScenarioID, when set, outranks
	// insertion order for equal-priority conflicts.
	ActiveScenarios   []ActiveScenario `json:"active_scenarios"`
	PrimaryScenarioID string           `json:"primary_scenario_id,omitempty"`

	Variables        map[string]Variable `json:"variables"`
	RuleFires        map[string]int      `json:"rule_fires"`
	RuleLastFireTurn map[string]int      `json:"rule_last_fire_turn"`

	TurnCount int           `json:"turn_count"`
	Status    SessionStatus `json:"status"`

	PendingMigration *MigrationRef `json:"pending_migration,omitempty"`
	PendingGapAsks   []GapAsk      `json:"pending_gap_asks,omitempty"`

	// ScenarioChecksum hashes the active (scenario, version) set so staleness
	// can be detected without loading every graph.
	ScenarioChecksum string `json:"scenario_checksum"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// NewSession creates an active, empty session.
func NewSession(tenantID, id string) *Session {
	now := time.Now().UTC()
	return &Session{
		TenantID:         tenantID,
		ID:               id,
		ActiveScenarios:  []ActiveScenario{},
		Variables:        map[string]Variable{},
		RuleFires:        map[string]int{},
		RuleLastFireTurn: map[string]int{},
		Status:           SessionActive,
		ScenarioChecksum: ActiveSetChecksum(nil),
		Created:          now,
		Updated:          now,
	}
}

// SetVariable writes a variable value, stamping UpdatedAt.
func (s *Session) SetVariable(name string, value any) {
	s.Variables[name] = Variable{Value: value, UpdatedAt: time.Now().UTC()}
	s.Updated = time.Now().UTC()
}

// Variable returns the value and existence flag for a variable name.
func (s *Session) Variable(name string) (any, bool) {
	v, ok := s.Variables[name]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// RenameVariable moves a variable to a new name, preserving its value and
// timestamp. A no-op if the old name is absent; an existing value under the
// new name is not overwritten (the newer collection wins).
func (s *Session) RenameVariable(oldName, newName string) {
	v, ok := s.Variables[oldName]
	if !ok || oldName == newName {
		return
	}
	if _, exists := s.Variables[newName]; !exists {
		s.Variables[newName] = v
	}
	delete(s.Variables, oldName)
	s.Updated = time.Now().UTC()
}

// RecordRuleFire increments a rule's fire count and remembers the turn.
func (s *Session) RecordRuleFire(ruleID string, turn int) {
	s.RuleFires[ruleID]++
	s.RuleLastFireTurn[ruleID] = turn
}

// ActiveScenario returns a pointer into ActiveScenarios for the given
// scenario id, or nil if the scenario is not active.
func (s *Session) ActiveScenario(scenarioID string) *ActiveScenario {
	for i := range s.ActiveScenarios {
		if s.ActiveScenarios[i].ScenarioID == scenarioID {
			return &s.ActiveScenarios[i]
		}
	}
	return nil
}

// ActivateScenario appends a scenario to the active set at the given step and
// version. The first activated scenario becomes primary unless one is set.
func (s *Session) ActivateScenario(scenarioID, stepID string, version int) {
	if s.ActiveScenario(scenarioID) != nil {
		return
	}
	s.ActiveScenarios = append(s.ActiveScenarios, ActiveScenario{
		ScenarioID: scenarioID,
		StepID:     stepID,
		Version:    version,
	})
	if s.PrimaryScenarioID == "" {
		s.PrimaryScenarioID = scenarioID
	}
	s.Updated = time.Now().UTC()
}

// DeactivateScenario removes a scenario from the active set. Removal ends
// that scenario's participation, not the session.
func (s *Session) DeactivateScenario(scenarioID string) {
	for i := range s.ActiveScenarios {
		if s.ActiveScenarios[i].ScenarioID == scenarioID {
			s.ActiveScenarios = append(s.ActiveScenarios[:i], s.ActiveScenarios[i+1:]...)
			s.Updated = time.Now().UTC()
			return
		}
	}
}

// AddGapAsk schedules a follow-up ASK for a field gap-fill could not resolve.
// Duplicate marks for the same (scenario, field) pair are collapsed.
func (s *Session) AddGapAsk(scenarioID, field string) {
	for _, g := range s.PendingGapAsks {
		if g.ScenarioID == scenarioID && g.Field == field {
			return
		}
	}
	s.PendingGapAsks = append(s.PendingGapAsks, GapAsk{ScenarioID: scenarioID, Field: field})
}

// TakeGapAsks removes and returns the pending gap asks for one scenario.
func (s *Session) TakeGapAsks(scenarioID string) []string {
	var fields []string
	var rest []GapAsk
	for _, g := range s.PendingGapAsks {
		if g.ScenarioID == scenarioID {
			fields = append(fields, g.Field)
			continue
		}
		rest = append(rest, g)
	}
	s.PendingGapAsks = rest
	return fields
}

// RefreshChecksum recomputes ScenarioChecksum from the active set.
func (s *Session) RefreshChecksum() {
	s.ScenarioChecksum = ActiveSetChecksum(s.ActiveScenarios)
}

// Clone returns a deep copy of the session safe for independent mutation.
// The migration executor relies on this for its all-or-nothing commit.
func (s *Session) Clone() *Session {
	clone := *s
	clone.ActiveScenarios = make([]ActiveScenario, len(s.ActiveScenarios))
	copy(clone.ActiveScenarios, s.ActiveScenarios)
	clone.Variables = make(map[string]Variable, len(s.Variables))
	for k, v := range s.Variables {
		clone.Variables[k] = v
	}
	clone.RuleFires = make(map[string]int, len(s.RuleFires))
	for k, v := range s.RuleFires {
		clone.RuleFires[k] = v
	}
	clone.RuleLastFireTurn = make(map[string]int, len(s.RuleLastFireTurn))
	for k, v := range s.RuleLastFireTurn {
		clone.RuleLastFireTurn[k] = v
	}
	if s.PendingMigration != nil {
		ref := *s.PendingMigration
		clone.PendingMigration = &ref
	}
	clone.PendingGapAsks = make([]GapAsk, len(s.PendingGapAsks))
	copy(clone.PendingGapAsks, s.PendingGapAsks)
	return &clone
}

// Restore overwrites this session's state with a previously taken clone.
// Used to roll back a partially applied migration.
func (s *Session) Restore(snapshot *Session) {
	*s = *snapshot.Clone()
}

// SessionStore persists sessions. Save is compare-and-swap: it succeeds only
// when the stored session's TurnCount still equals expectedTurn (the value
// observed at load), returning ErrConflict otherwise so lost updates are
// detected rather than silently overwritten.
type SessionStore interface {
	Create(tenantID, sessionID string) (*Session, error)
	Load(tenantID, sessionID string) (*Session, error)
	Save(s *Session, expectedTurn int) error
}
