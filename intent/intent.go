// Package intent defines the contract between the engine and the upstream
// intent collaborator: a Sensor turns one raw user utterance into the turn's
// NavigationSignal. Provider adapters live in intent/openai and
// intent/anthropic; both classify with a chat model and share the JSON
// classification schema parsed here.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/convoworks/scenariomesh/core"
)

// Sensor classifies one utterance into a navigation signal. The active
// scenario ids give the classifier the candidate targets for START and EXIT.
type Sensor interface {
	Sense(ctx context.Context, utterance string, activeScenarioIDs []string) (core.NavigationSignal, error)
}

// classification is the JSON schema both provider adapters instruct the
// model to emit.
type classification struct {
	Signal           string            `json:"signal"`
	TargetScenarioID string            `json:"target_scenario_id,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	Sentiment        float64           `json:"sentiment,omitempty"`
}

// SystemPrompt renders the classifier instructions including the session's
// active scenarios.
func SystemPrompt(activeScenarioIDs []string) string {
	ids := append([]string(nil), activeScenarioIDs...)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("You classify one user utterance from a multi-scenario conversation.\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"signal":"START|CONTINUE|EXIT|UNKNOWN","target_scenario_id":"...","entities":{"name":"value"},"sentiment":0.0}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- START: the user wants to begin a new scenario; set target_scenario_id.\n")
	b.WriteString("- CONTINUE: the user keeps going with what is active.\n")
	b.WriteString("- EXIT: the user wants to stop a scenario; target_scenario_id optional.\n")
	b.WriteString("- UNKNOWN: anything you cannot classify.\n")
	b.WriteString("- entities: slot values stated verbatim in the utterance.\n")
	b.WriteString("- sentiment: -1.0 (negative) to 1.0 (positive).\n")
	if len(ids) > 0 {
		b.WriteString("\nActive scenarios: ")
		b.WriteString(strings.Join(ids, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// ParseClassification decodes a model reply into a NavigationSignal. Code
// fences around the JSON are tolerated; an unrecognized signal degrades to
// UNKNOWN rather than failing the turn.
func ParseClassification(raw string) (core.NavigationSignal, error) {
	raw = stripFences(raw)

	var c classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return core.NavigationSignal{}, fmt.Errorf("decode classification: %w", err)
	}

	sig := core.NavigationSignal{
		TargetScenarioID: c.TargetScenarioID,
		Entities:         c.Entities,
		Sentiment:        c.Sentiment,
	}
	switch core.SignalKind(strings.ToUpper(strings.TrimSpace(c.Signal))) {
	case core.SignalStart:
		sig.Kind = core.SignalStart
	case core.SignalContinue:
		sig.Kind = core.SignalContinue
	case core.SignalExit:
		sig.Kind = core.SignalExit
	default:
		sig.Kind = core.SignalUnknown
	}
	return sig, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// StaticSensor returns a fixed signal. Useful in tests and demos that run
// without model credentials.
type StaticSensor struct {
	Signal core.NavigationSignal
}

// Sense returns the configured signal.
func (s StaticSensor) Sense(_ context.Context, _ string, _ []string) (core.NavigationSignal, error) {
	return s.Signal, nil
}
