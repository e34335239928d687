package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoworks/scenariomesh/core"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want core.NavigationSignal
	}{
		{
			name: "start with target",
			raw:  `{"signal":"START","target_scenario_id":"onboarding"}`,
			want: core.NavigationSignal{Kind: core.SignalStart, TargetScenarioID: "onboarding"},
		},
		{
			name: "continue with entities and sentiment",
			raw:  `{"signal":"CONTINUE","entities":{"name":"Ada"},"sentiment":0.8}`,
			want: core.NavigationSignal{
				Kind:      core.SignalContinue,
				Entities:  map[string]string{"name": "Ada"},
				Sentiment: 0.8,
			},
		},
		{
			name: "lowercase signal normalized",
			raw:  `{"signal":"exit"}`,
			want: core.NavigationSignal{Kind: core.SignalExit},
		},
		{
			name: "unrecognized signal degrades to unknown",
			raw:  `{"signal":"HANDOFF"}`,
			want: core.NavigationSignal{Kind: core.SignalUnknown},
		},
		{
			name: "fenced json tolerated",
			raw:  "```json\n{\"signal\":\"START\",\"target_scenario_id\":\"billing\"}\n```",
			want: core.NavigationSignal{Kind: core.SignalStart, TargetScenarioID: "billing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClassification_InvalidJSON(t *testing.T) {
	_, err := ParseClassification("I think the user wants to start onboarding.")
	assert.Error(t, err)
}

func TestSystemPrompt_ListsActiveScenarios(t *testing.T) {
	prompt := SystemPrompt([]string{"support", "billing"})
	assert.Contains(t, prompt, "billing, support")
	assert.Contains(t, prompt, `"signal":"START|CONTINUE|EXIT|UNKNOWN"`)

	assert.NotContains(t, SystemPrompt(nil), "Active scenarios")
}

func TestStaticSensor(t *testing.T) {
	s := StaticSensor{Signal: core.NavigationSignal{Kind: core.SignalContinue}}
	sig, err := s.Sense(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, core.SignalContinue, sig.Kind)
}
