package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for turns, plans and audit events.
func NewID() string { return uuid.NewString() }

// ActiveSetChecksum computes a stable hash over a session's active
// (scenario, version) set. It is the cheap staleness token used to decide
// whether a just-in-time migration check can be skipped: two sessions with
// the same active set always produce the same checksum, regardless of the
// order scenarios were activated in.
func ActiveSetChecksum(active []ActiveScenario) string {
	keys := make([]string, 0, len(active))
	for _, as := range active {
		keys = append(keys, fmt.Sprintf("%s@%d", as.ScenarioID, as.Version))
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
