package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveSetChecksum_OrderIndependent(t *testing.T) {
	a := []ActiveScenario{
		{ScenarioID: "onboarding", StepID: "s1", Version: 2},
		{ScenarioID: "billing", StepID: "s3", Version: 1},
	}
	b := []ActiveScenario{
		{ScenarioID: "billing", StepID: "x", Version: 1},
		{ScenarioID: "onboarding", StepID: "y", Version: 2},
	}

	// Checksum depends on (scenario, version) only, not step or order.
	assert.Equal(t, ActiveSetChecksum(a), ActiveSetChecksum(b))
}

func TestActiveSetChecksum_VersionSensitive(t *testing.T) {
	v1 := []ActiveScenario{{ScenarioID: "onboarding", Version: 1}}
	v2 := []ActiveScenario{{ScenarioID: "onboarding", Version: 2}}

	assert.NotEqual(t, ActiveSetChecksum(v1), ActiveSetChecksum(v2))
}

func TestActiveSetChecksum_Empty(t *testing.T) {
	assert.NotEmpty(t, ActiveSetChecksum(nil))
	assert.Equal(t, ActiveSetChecksum(nil), ActiveSetChecksum([]ActiveScenario{}))
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
