package archive

import (
	"testing"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var (
	_ core.ArchiveStore = (*InMemoryArchive)(nil)
	_ core.PlanStore    = (*InMemoryPlanStore)(nil)
)

func graph(id string, version int) *core.ScenarioGraph {
	return testutil.NewGraphBuilder(id, version).
		Step(core.Step{ID: "entry"}).
		Build()
}

func TestInMemoryArchive_AppendOnly(t *testing.T) {
	a := NewInMemoryArchive()
	require.NoError(t, a.Put("acme", graph("onboarding", 1)))

	err := a.Put("acme", graph("onboarding", 1))
	assert.ErrorIs(t, err, core.ErrVersionExists)

	// Same version under another tenant is a different key.
	assert.NoError(t, a.Put("globex", graph("onboarding", 1)))
}

func TestInMemoryArchive_RejectsInvalidGraph(t *testing.T) {
	a := NewInMemoryArchive()
	bad := graph("onboarding", 1)
	bad.EntryStepID = "missing"
	assert.Error(t, a.Put("acme", bad))
}

func TestInMemoryArchive_Latest(t *testing.T) {
	a := NewInMemoryArchive()
	require.NoError(t, a.Put("acme", graph("onboarding", 1)))
	require.NoError(t, a.Put("acme", graph("onboarding", 3)))
	require.NoError(t, a.Put("acme", graph("onboarding", 2)))

	g, err := a.Latest("acme", "onboarding")
	require.NoError(t, err)
	assert.Equal(t, 3, g.Version)

	_, err = a.Latest("acme", "unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = a.Get("acme", "onboarding", 9)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func deployed(scenario string, from, to int) *core.MigrationPlan {
	return testutil.NewPlanBuilder("acme", scenario, from, to).Deployed().Build()
}

func TestInMemoryPlanStore_DeployedChain(t *testing.T) {
	s := NewInMemoryPlanStore()
	require.NoError(t, s.Put(deployed("onboarding", 2, 3)))
	require.NoError(t, s.Put(deployed("onboarding", 3, 4)))
	require.NoError(t, s.Put(deployed("onboarding", 5, 6))) // gap: excluded
	require.NoError(t, s.Put(deployed("billing", 2, 3)))    // other scenario

	draft := deployed("onboarding", 4, 5)
	draft.Status = core.PlanDraft
	require.NoError(t, s.Put(draft))

	chain, err := s.DeployedChain("acme", "onboarding", 2)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, 2, chain[0].FromVersion)
	assert.Equal(t, 3, chain[1].FromVersion)
	assert.Equal(t, 4, chain[1].ToVersion)
}

func TestInMemoryPlanStore_ChainEmptyWhenCurrent(t *testing.T) {
	s := NewInMemoryPlanStore()
	require.NoError(t, s.Put(deployed("onboarding", 2, 3)))

	chain, err := s.DeployedChain("acme", "onboarding", 3)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestInMemoryPlanStore_GetClones(t *testing.T) {
	s := NewInMemoryPlanStore()
	p := deployed("onboarding", 2, 3)
	p.StepMap = map[string]core.StepMapping{"a": {To: "b"}}
	require.NoError(t, s.Put(p))

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	got.StepMap["a"] = core.StepMapping{To: "mutated"}

	again, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", again.StepMap["a"].To)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
