package core

// ContributionType tags what one active scenario wants from the current
// turn. Payload fields on Contribution are only meaningful for their tag.
type ContributionType string

const (
	// ContributionAsk requests values from the user (AskFields).
	ContributionAsk ContributionType = "ASK"
	// ContributionInform proposes informative content (TemplateID).
	ContributionInform ContributionType = "INFORM"
	// ContributionConfirm asks the user to confirm an action (ConfirmAction).
	ContributionConfirm ContributionType = "CONFIRM"
	// ContributionActionHint suggests tools for the generation layer (ToolHints).
	ContributionActionHint ContributionType = "ACTION_HINT"
	// ContributionNone means the scenario has nothing for this turn.
	ContributionNone ContributionType = "NONE"
)

// Contribution is one scenario's proposed action for the current turn. It is
// ephemeral: produced fresh by the orchestrator, consumed immediately by the
// plan builder, never persisted standalone.
type Contribution struct {
	ScenarioID string           `json:"scenario_id"`
	Type       ContributionType `json:"type"`
	Priority   int              `json:"priority"`

	AskFields     []string `json:"ask_fields,omitempty"`
	TemplateID    string   `json:"template_id,omitempty"`
	ConfirmAction string   `json:"confirm_action,omitempty"`
	ToolHints     []string `json:"tool_hints,omitempty"`

	MustInclude []string `json:"must_include,omitempty"`
	MustAvoid   []string `json:"must_avoid,omitempty"`
}

// ResponseType is the merged plan's overall shape.
type ResponseType string

const (
	// ResponseAsk plans ask the user exactly one question set.
	ResponseAsk ResponseType = "ASK"
	// ResponseConfirm plans seek confirmation for an action.
	ResponseConfirm ResponseType = "CONFIRM"
	// ResponseAnswer plans answer or inform without asking anything.
	ResponseAnswer ResponseType = "ANSWER"
	// ResponseMixed plans combine asking/acting with informing.
	ResponseMixed ResponseType = "MIXED"
)

// ResponsePlan is the turn's single merged output handed to the generation
// collaborator. Built once per turn and then discarded; the audit
// collaborator logs its content rather than the engine retaining it.
type ResponsePlan struct {
	TurnID       string       `json:"turn_id"`
	ResponseType ResponseType `json:"response_type"`

	// WinnerScenarioID is the scenario whose ASK/CONFIRM won the merge, if any.
	WinnerScenarioID string `json:"winner_scenario_id,omitempty"`

	AskFields     []string `json:"ask_fields,omitempty"`
	ConfirmAction string   `json:"confirm_action,omitempty"`
	ToolHints     []string `json:"tool_hints,omitempty"`
	TemplateIDs   []string `json:"template_ids,omitempty"`

	// Constraint unions across every contribution and selected rule; safety
	// constraints are never dropped by losing contributors.
	MustInclude []string `json:"must_include,omitempty"`
	MustAvoid   []string `json:"must_avoid,omitempty"`

	// Contributions records each scenario's raw contribution for audit.
	Contributions []Contribution `json:"contributions"`
}
