package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validGraph() *ScenarioGraph {
	return &ScenarioGraph{
		ID:          "onboarding",
		Version:     1,
		EntryStepID: "welcome",
		Steps: []Step{
			{ID: "welcome", Transitions: map[SignalKind]string{SignalContinue: "collect_name"}},
			{ID: "collect_name", Fields: []FieldDef{{Name: "name", Required: true}}},
			{ID: "done", Terminal: true},
		},
	}
}

func TestScenarioGraph_Validate(t *testing.T) {
	assert.NoError(t, validGraph().Validate())

	g := validGraph()
	g.ID = ""
	assert.Error(t, g.Validate())

	g = validGraph()
	g.Version = 0
	assert.Error(t, g.Validate())

	g = validGraph()
	g.EntryStepID = "missing"
	assert.Error(t, g.Validate())

	g = validGraph()
	g.Steps = append(g.Steps, Step{ID: "welcome"})
	assert.Error(t, g.Validate())

	g = validGraph()
	g.Steps[0].Transitions[SignalExit] = "nowhere"
	err := g.Validate()
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScenarioGraph_Lookups(t *testing.T) {
	g := validGraph()

	s, ok := g.Step("collect_name")
	assert.True(t, ok)
	assert.Equal(t, "collect_name", s.ID)

	_, ok = g.Step("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"welcome", "collect_name", "done"}, g.StepIDs())

	fields := g.FieldNames()
	assert.Contains(t, fields, "name")
	assert.True(t, fields["name"].Required)
}
