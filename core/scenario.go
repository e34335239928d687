package core

import "fmt"

// FieldDef declares a variable a step collects or depends on. Defaults are
// consulted by gap-fill when a migrated session reaches a step whose field
// was never collected under the old version.
type FieldDef struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// Step is a single node in a scenario graph. Transitions are keyed by the
// navigation signal kind that triggers them; a step with no transition for
// the incoming signal leaves the session where it is (EXIT being the
// exception, handled by the orchestrator).
type Step struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Transitions map[SignalKind]string `json:"transitions,omitempty"`
	Terminal    bool                  `json:"terminal,omitempty"`

	// Contribution inputs. Fields drive ASK, ConfirmAction drives CONFIRM,
	// ToolHints drive ACTION_HINT and TemplateID drives INFORM.
	Fields        []FieldDef `json:"fields,omitempty"`
	ConfirmAction string     `json:"confirm_action,omitempty"`
	ToolHints     []string   `json:"tool_hints,omitempty"`
	TemplateID    string     `json:"template_id,omitempty"`
	Priority      int        `json:"priority,omitempty"`

	// Safety constraints carried into every contribution this step produces.
	MustInclude []string `json:"must_include,omitempty"`
	MustAvoid   []string `json:"must_avoid,omitempty"`
}

// ScenarioGraph is the immutable, versioned definition of one scenario's
// steps and transitions. A published graph is never mutated; edits produce a
// new graph with a higher Version under the same ID.
type ScenarioGraph struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	EntryStepID string `json:"entry_step_id"`
	Steps       []Step `json:"steps"`
}

// Step returns the step with the given id, if present.
func (g *ScenarioGraph) Step(id string) (Step, bool) {
	for _, s := range g.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// StepIDs returns the ids of all steps in declaration order.
func (g *ScenarioGraph) StepIDs() []string {
	ids := make([]string, len(g.Steps))
	for i, s := range g.Steps {
		ids[i] = s.ID
	}
	return ids
}

// FieldNames returns the union of field names declared across all steps.
func (g *ScenarioGraph) FieldNames() map[string]FieldDef {
	fields := map[string]FieldDef{}
	for _, s := range g.Steps {
		for _, f := range s.Fields {
			fields[f.Name] = f
		}
	}
	return fields
}

// Validate checks internal consistency: non-empty id, positive version,
// unique step ids, a resolvable entry step and transitions that only target
// existing steps.
func (g *ScenarioGraph) Validate() error {
	if g.ID == "" {
		return &ValidationError{Field: "id", Reason: "scenario id must not be empty"}
	}
	if g.Version <= 0 {
		return &ValidationError{Field: "version", Reason: "version must be positive"}
	}
	seen := map[string]bool{}
	for _, s := range g.Steps {
		if s.ID == "" {
			return &ValidationError{Field: "steps", Reason: "step id must not be empty"}
		}
		if seen[s.ID] {
			return &ValidationError{Field: "steps", Reason: fmt.Sprintf("duplicate step id %q", s.ID)}
		}
		seen[s.ID] = true
	}
	if !seen[g.EntryStepID] {
		return &ValidationError{Field: "entry_step_id", Reason: fmt.Sprintf("entry step %q not defined", g.EntryStepID)}
	}
	for _, s := range g.Steps {
		for sig, target := range s.Transitions {
			if !seen[target] {
				return &ValidationError{
					Field:  "transitions",
					Reason: fmt.Sprintf("step %q transition on %s targets unknown step %q", s.ID, sig, target),
				}
			}
		}
	}
	return nil
}

// ArchiveStore persists scenario graph snapshots. It is append-only: a
// published (scenario, version) pair is never overwritten or deleted, so
// sessions started against old versions can always be diffed against them.
type ArchiveStore interface {
	// Put archives a graph snapshot. Returns ErrVersionExists if the
	// (tenant, scenario, version) key is already archived.
	Put(tenantID string, graph *ScenarioGraph) error

	// Get returns the archived snapshot for an exact version, or ErrNotFound.
	Get(tenantID, scenarioID string, version int) (*ScenarioGraph, error)

	// Latest returns the highest archived version of a scenario, or ErrNotFound.
	Latest(tenantID, scenarioID string) (*ScenarioGraph, error)
}
