// Package archive provides volatile reference implementations of the
// scenario archive and migration plan stores. They are safe for concurrent
// access and best suited for tests or ephemeral demo deployments; production
// systems supply durable implementations of the core interfaces.
package archive

import (
	"fmt"
	"sort"
	"sync"

	"github.com/convoworks/scenariomesh/core"
)

type archiveKey struct {
	tenantID   string
	scenarioID string
	version    int
}

// InMemoryArchive is an append-only, process-local ArchiveStore. Published
// snapshots are never overwritten or deleted.
type InMemoryArchive struct {
	mu     sync.RWMutex
	graphs map[archiveKey]*core.ScenarioGraph
}

// NewInMemoryArchive constructs an empty in-memory archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{graphs: map[archiveKey]*core.ScenarioGraph{}}
}

// Put archives a validated graph snapshot.
func (a *InMemoryArchive) Put(tenantID string, graph *core.ScenarioGraph) error {
	if err := graph.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := archiveKey{tenantID, graph.ID, graph.Version}
	if _, exists := a.graphs[key]; exists {
		return fmt.Errorf("%s@%d: %w", graph.ID, graph.Version, core.ErrVersionExists)
	}
	a.graphs[key] = graph
	return nil
}

// Get returns the snapshot for an exact version.
func (a *InMemoryArchive) Get(tenantID, scenarioID string, version int) (*core.ScenarioGraph, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g, ok := a.graphs[archiveKey{tenantID, scenarioID, version}]
	if !ok {
		return nil, fmt.Errorf("%s@%d: %w", scenarioID, version, core.ErrNotFound)
	}
	return g, nil
}

// Latest returns the highest archived version of a scenario.
func (a *InMemoryArchive) Latest(tenantID, scenarioID string) (*core.ScenarioGraph, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var best *core.ScenarioGraph
	for key, g := range a.graphs {
		if key.tenantID != tenantID || key.scenarioID != scenarioID {
			continue
		}
		if best == nil || g.Version > best.Version {
			best = g
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s: %w", scenarioID, core.ErrNotFound)
	}
	return best, nil
}

// InMemoryPlanStore is a volatile PlanStore. Plans are stored by value clone
// on write so later status changes by callers do not leak in.
type InMemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]*core.MigrationPlan
}

// NewInMemoryPlanStore constructs an empty in-memory plan store.
func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{plans: map[string]*core.MigrationPlan{}}
}

func clonePlan(p *core.MigrationPlan) *core.MigrationPlan {
	c := *p
	c.StepMap = make(map[string]core.StepMapping, len(p.StepMap))
	for k, v := range p.StepMap {
		c.StepMap[k] = v
	}
	c.VariableMap = make(map[string]core.VariableMapping, len(p.VariableMap))
	for k, v := range p.VariableMap {
		c.VariableMap[k] = v
	}
	c.AnchorPolicies = make(map[string]core.AnchorPolicy, len(p.AnchorPolicies))
	for k, v := range p.AnchorPolicies {
		c.AnchorPolicies[k] = v
	}
	return &c
}

// Put stores or updates a plan keyed by ID.
func (s *InMemoryPlanStore) Put(plan *core.MigrationPlan) error {
	if plan.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "plan id must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = clonePlan(plan)
	return nil
}

// Get returns a plan by id.
func (s *InMemoryPlanStore) Get(id string) (*core.MigrationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, core.ErrNotFound)
	}
	return clonePlan(p), nil
}

// DeployedChain returns the contiguous run of DEPLOYED plans for a scenario
// starting at fromVersion, ordered by version. The chain stops at the first
// gap.
func (s *InMemoryPlanStore) DeployedChain(tenantID, scenarioID string, fromVersion int) ([]*core.MigrationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deployed []*core.MigrationPlan
	for _, p := range s.plans {
		if p.TenantID == tenantID && p.ScenarioID == scenarioID && p.Status == core.PlanDeployed {
			deployed = append(deployed, p)
		}
	}
	sort.Slice(deployed, func(i, j int) bool {
		return deployed[i].FromVersion < deployed[j].FromVersion
	})

	var chain []*core.MigrationPlan
	next := fromVersion
	for _, p := range deployed {
		if p.FromVersion != next {
			continue
		}
		chain = append(chain, clonePlan(p))
		next = p.ToVersion
	}
	return chain, nil
}
