package migration

import (
	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/logging"
)

// GapStatus tags how a missing variable was handled.
type GapStatus string

const (
	// GapDerived means a registered deriver produced the value.
	GapDerived GapStatus = "derived"
	// GapDefaulted means the new version's field default was used.
	GapDefaulted GapStatus = "defaulted"
	// GapAskScheduled means the value must be asked for; an ASK follow-up is
	// scheduled for the next orchestration pass.
	GapAskScheduled GapStatus = "ask_scheduled"
)

// GapResolution records the outcome for one missing field.
type GapResolution struct {
	Field  string
	Status GapStatus
	Value  any
}

// Deriver computes a variable value from existing session state (cached
// profile data, derivable combinations). It must be synchronous and cheap.
type Deriver func(s *core.Session) (any, bool)

// GapFill supplies values a migrated step needs but the old version never
// collected. It never blocks the turn: when a value cannot be resolved
// synchronously the field stays missing and a follow-up ASK is scheduled on
// the session.
type GapFill struct {
	derivers map[string]Deriver
	logger   logging.Logger
}

// GapFillOptions configures a GapFill service.
type GapFillOptions struct {
	// Derivers maps field names to synchronous value derivations.
	Derivers map[string]Deriver
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewGapFill creates a GapFill service.
func NewGapFill(optFns ...func(o *GapFillOptions)) *GapFill {
	opts := GapFillOptions{
		Derivers: map[string]Deriver{},
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GapFill{derivers: opts.Derivers, logger: opts.Logger}
}

// Fill resolves every field the step declares that the session lacks.
// Resolution order per field: deriver, then the field's declared default,
// then (for required fields) a scheduled ASK. Optional fields without a
// deriver or default are left untouched.
func (g *GapFill) Fill(s *core.Session, scenarioID string, step core.Step) []GapResolution {
	var out []GapResolution
	for _, f := range step.Fields {
		if _, ok := s.Variable(f.Name); ok {
			continue
		}
		if derive, ok := g.derivers[f.Name]; ok {
			if v, ok := derive(s); ok {
				s.SetVariable(f.Name, v)
				out = append(out, GapResolution{Field: f.Name, Status: GapDerived, Value: v})
				continue
			}
		}
		if f.Default != nil {
			s.SetVariable(f.Name, f.Default)
			out = append(out, GapResolution{Field: f.Name, Status: GapDefaulted, Value: f.Default})
			continue
		}
		if f.Required {
			s.AddGapAsk(scenarioID, f.Name)
			out = append(out, GapResolution{Field: f.Name, Status: GapAskScheduled})
			g.logger.Debug("gapfill: scheduled ask for %s.%s at step %s", scenarioID, f.Name, step.ID)
		}
	}
	return out
}
