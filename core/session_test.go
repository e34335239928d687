package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_ActivateScenario(t *testing.T) {
	s := NewSession("acme", "sess-1")

	s.ActivateScenario("onboarding", "welcome", 1)
	s.ActivateScenario("billing", "intro", 2)
	s.ActivateScenario("onboarding", "other", 9) // duplicate, ignored

	assert.Len(t, s.ActiveScenarios, 2)
	assert.Equal(t, "onboarding", s.ActiveScenarios[0].ScenarioID)
	assert.Equal(t, "welcome", s.ActiveScenarios[0].StepID)
	assert.Equal(t, "onboarding", s.PrimaryScenarioID)
}

func TestSession_DeactivateScenario(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.ActivateScenario("a", "s1", 1)
	s.ActivateScenario("b", "s1", 1)

	s.DeactivateScenario("a")

	assert.Len(t, s.ActiveScenarios, 1)
	assert.Equal(t, "b", s.ActiveScenarios[0].ScenarioID)
	assert.Nil(t, s.ActiveScenario("a"))
}

func TestSession_RenameVariable(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.SetVariable("name", "Ada")

	s.RenameVariable("name", "full_name")

	v, ok := s.Variable("full_name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)
	_, ok = s.Variable("name")
	assert.False(t, ok)
}

func TestSession_RenameVariable_DoesNotOverwrite(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.SetVariable("name", "Ada")
	s.SetVariable("full_name", "Ada Lovelace")

	s.RenameVariable("name", "full_name")

	v, _ := s.Variable("full_name")
	assert.Equal(t, "Ada Lovelace", v)
	_, ok := s.Variable("name")
	assert.False(t, ok)
}

func TestSession_GapAsks(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.AddGapAsk("onboarding", "email")
	s.AddGapAsk("onboarding", "email") // collapsed
	s.AddGapAsk("billing", "iban")

	fields := s.TakeGapAsks("onboarding")

	assert.Equal(t, []string{"email"}, fields)
	assert.Len(t, s.PendingGapAsks, 1)
	assert.Equal(t, "billing", s.PendingGapAsks[0].ScenarioID)
}

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.ActivateScenario("a", "s1", 1)
	s.SetVariable("name", "Ada")
	s.RecordRuleFire("r1", 1)
	s.PendingMigration = &MigrationRef{ScenarioID: "a"}

	clone := s.Clone()
	clone.ActiveScenarios[0].StepID = "s2"
	clone.SetVariable("name", "Grace")
	clone.RecordRuleFire("r1", 2)
	clone.PendingMigration.ScenarioID = "b"

	assert.Equal(t, "s1", s.ActiveScenarios[0].StepID)
	v, _ := s.Variable("name")
	assert.Equal(t, "Ada", v)
	assert.Equal(t, 1, s.RuleFires["r1"])
	assert.Equal(t, "a", s.PendingMigration.ScenarioID)
}

func TestSession_Restore(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.ActivateScenario("a", "s1", 1)
	snapshot := s.Clone()

	s.ActiveScenarios[0].StepID = "s9"
	s.SetVariable("junk", true)
	s.Restore(snapshot)

	assert.Equal(t, "s1", s.ActiveScenarios[0].StepID)
	_, ok := s.Variable("junk")
	assert.False(t, ok)
}

func TestSession_RecordRuleFire(t *testing.T) {
	s := NewSession("acme", "sess-1")
	s.RecordRuleFire("r1", 3)
	s.RecordRuleFire("r1", 5)

	assert.Equal(t, 2, s.RuleFires["r1"])
	assert.Equal(t, 5, s.RuleLastFireTurn["r1"])
}
