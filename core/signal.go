package core

// SignalKind is the navigation intent extracted from the user's utterance by
// the upstream intent collaborator. The orchestrator never infers intent
// itself; it only applies the transition matching the supplied kind.
type SignalKind string

const (
	// SignalStart activates a scenario (TargetScenarioID) for the session.
	SignalStart SignalKind = "START"
	// SignalContinue advances active scenarios along their CONTINUE transitions.
	SignalContinue SignalKind = "CONTINUE"
	// SignalExit ends participation of the targeted (or all) active scenarios.
	SignalExit SignalKind = "EXIT"
	// SignalUnknown indicates intent extraction could not classify the turn.
	SignalUnknown SignalKind = "UNKNOWN"
)

// NavigationSignal is the per-turn navigation input supplied once, before
// orchestration runs. Entities carry extracted slot values the orchestrator
// merges into session variables.
type NavigationSignal struct {
	Kind             SignalKind        `json:"kind"`
	TargetScenarioID string            `json:"target_scenario_id,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	Sentiment        float64           `json:"sentiment,omitempty"`
}

// Candidate is one entry of the ranked retrieval list handed to the adaptive
// selection strategy. Item identifies the retrieved rule; the constraint
// slices carry that rule's pre-extracted safety constraints.
type Candidate struct {
	Item        string   `json:"item"`
	Score       float64  `json:"score"`
	MustInclude []string `json:"must_include,omitempty"`
	MustAvoid   []string `json:"must_avoid,omitempty"`
}
