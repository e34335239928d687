package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoworks/scenariomesh/archive"
	"github.com/convoworks/scenariomesh/audit"
	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/migration"
	"github.com/convoworks/scenariomesh/session"
)

func onboardingGraph(version int) *core.ScenarioGraph {
	return &core.ScenarioGraph{
		ID: "onboarding", Version: version, EntryStepID: "welcome",
		Steps: []core.Step{
			{
				ID:          "welcome",
				Transitions: map[core.SignalKind]string{core.SignalContinue: "collect_name"},
				TemplateID:  "tpl_welcome",
			},
			{
				ID:          "collect_name",
				Fields:      []core.FieldDef{{Name: "name", Required: true}},
				Transitions: map[core.SignalKind]string{core.SignalContinue: "done"},
			},
			{ID: "done", Terminal: true},
		},
	}
}

func fixtureArchive(t *testing.T, versions ...int) *archive.InMemoryArchive {
	t.Helper()
	arch := archive.NewInMemoryArchive()
	for _, v := range versions {
		require.NoError(t, arch.Put("acme", onboardingGraph(v)))
	}
	return arch
}

func ranked(items ...string) []core.Candidate {
	out := make([]core.Candidate, len(items))
	for i, it := range items {
		out[i] = core.Candidate{Item: it, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func startSignal() core.NavigationSignal {
	return core.NavigationSignal{Kind: core.SignalStart, TargetScenarioID: "onboarding"}
}

func TestEngine_ProcessTurn(t *testing.T) {
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
	})

	plan, sess, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1", "r2"))
	require.NoError(t, err)

	assert.NotEmpty(t, plan.TurnID)
	assert.Equal(t, core.ResponseAnswer, plan.ResponseType)
	assert.Contains(t, plan.TemplateIDs, "tpl_welcome")
	assert.Equal(t, 1, sess.TurnCount)
	assert.Equal(t, "onboarding", sess.PrimaryScenarioID)

	// Second turn advances the persisted state, not the returned copy.
	plan, sess, err = e.ProcessTurn(context.Background(), "acme", "sess-1",
		core.NavigationSignal{Kind: core.SignalContinue}, ranked("r1"))
	require.NoError(t, err)
	assert.Equal(t, core.ResponseAsk, plan.ResponseType)
	assert.Equal(t, []string{"name"}, plan.AskFields)
	assert.Equal(t, 2, sess.TurnCount)
}

func TestEngine_ProcessTurn_UnsortedCandidatesFailFast(t *testing.T) {
	store := session.NewInMemoryStore()
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	unsorted := []core.Candidate{{Item: "a", Score: 0.1}, {Item: "b", Score: 0.9}}
	_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), unsorted)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	// Nothing was persisted.
	sess, err := store.Load("acme", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.TurnCount)
	assert.Empty(t, sess.ActiveScenarios)
}

func TestEngine_ProcessTurn_InactiveSessionRejected(t *testing.T) {
	store := session.NewInMemoryStore()
	sess, err := store.Create("acme", "sess-1")
	require.NoError(t, err)
	sess.Status = core.SessionCompleted
	require.NoError(t, store.Save(sess, 0))

	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	_, _, err = e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEngine_ProcessTurn_SerializesSameSession(t *testing.T) {
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
	})

	// Warm up so both concurrent turns run CONTINUE against active state.
	_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = e.ProcessTurn(context.Background(), "acme", "sess-1",
				core.NavigationSignal{Kind: core.SignalUnknown}, ranked("r1"))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Exactly one increment per turn: serialized, no lost update.
	_, sess, err := e.ProcessTurn(context.Background(), "acme", "sess-1",
		core.NavigationSignal{Kind: core.SignalUnknown}, ranked("r1"))
	require.NoError(t, err)
	assert.Equal(t, 4, sess.TurnCount)
}

// gateStore blocks the first Load until released so tests can hold the
// session lock at a known point.
type gateStore struct {
	core.SessionStore
	entered chan struct{}
	release chan struct{}
	first   int32
}

func newGateStore() *gateStore {
	return &gateStore{
		SessionStore: session.NewInMemoryStore(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (g *gateStore) Load(tenantID, sessionID string) (*core.Session, error) {
	if atomic.CompareAndSwapInt32(&g.first, 0, 1) {
		close(g.entered)
		<-g.release
	}
	return g.SessionStore.Load(tenantID, sessionID)
}

func TestEngine_ProcessTurn_RejectPolicy(t *testing.T) {
	store := newGateStore()
	cfg := DefaultConfig
	cfg.LockPolicy = LockPolicyReject
	e := New(func(o *Options) {
		o.Config = cfg
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
		done <- err
	}()
	<-store.entered

	_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	assert.ErrorIs(t, err, core.ErrSessionBusy)

	// A different session is unaffected by the held lock.
	_, _, err = e.ProcessTurn(context.Background(), "acme", "sess-2", startSignal(), ranked("r1"))
	assert.NoError(t, err)

	close(store.release)
	require.NoError(t, <-done)
}

func TestEngine_ProcessTurn_WaitPolicyTimesOut(t *testing.T) {
	store := newGateStore()
	cfg := DefaultConfig
	cfg.LockWaitTimeout = 20 * time.Millisecond
	e := New(func(o *Options) {
		o.Config = cfg
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
		done <- err
	}()
	<-store.entered

	_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	assert.ErrorIs(t, err, core.ErrLockTimeout)

	close(store.release)
	require.NoError(t, <-done)
}

// conflictStore injects a fixed number of save conflicts before delegating.
type conflictStore struct {
	core.SessionStore
	conflicts int32
	saves     int32
}

func (c *conflictStore) Save(s *core.Session, expectedTurn int) error {
	atomic.AddInt32(&c.saves, 1)
	if atomic.AddInt32(&c.conflicts, -1) >= 0 {
		return core.ErrConflict
	}
	return c.SessionStore.Save(s, expectedTurn)
}

func TestEngine_ProcessTurn_RetriesOnceOnSaveConflict(t *testing.T) {
	store := &conflictStore{SessionStore: session.NewInMemoryStore(), conflicts: 1}
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	_, sess, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TurnCount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.saves))
}

func TestEngine_ProcessTurn_SurfacesConflictAfterRetries(t *testing.T) {
	store := &conflictStore{SessionStore: session.NewInMemoryStore(), conflicts: 10}
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = store
	})

	_, _, err := e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.saves))
}

func TestEngine_ProcessTurn_CancelledBeforeLock(t *testing.T) {
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.ProcessTurn(ctx, "acme", "sess-1", startSignal(), ranked("r1"))
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingStore cancels the turn's context during Load to prove that
// processing started before cancellation still runs to completion.
type cancellingStore struct {
	core.SessionStore
	cancel context.CancelFunc
}

func (c *cancellingStore) Load(tenantID, sessionID string) (*core.Session, error) {
	c.cancel()
	return c.SessionStore.Load(tenantID, sessionID)
}

func TestEngine_ProcessTurn_CancellationAfterStartStillPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := session.NewInMemoryStore()
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
		o.SessionStore = &cancellingStore{SessionStore: inner, cancel: cancel}
	})

	_, _, err := e.ProcessTurn(ctx, "acme", "sess-1", startSignal(), ranked("r1"))
	require.NoError(t, err)

	sess, err := inner.Load("acme", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TurnCount)
}

func TestEngine_ProcessTurn_AppliesPendingMigration(t *testing.T) {
	arch := fixtureArchive(t, 1, 2)
	plans := archive.NewInMemoryPlanStore()
	recorder := audit.NewInMemoryRecorder()
	store := session.NewInMemoryStore()

	g1, err := arch.Get("acme", "onboarding", 1)
	require.NoError(t, err)
	g2, err := arch.Get("acme", "onboarding", 2)
	require.NoError(t, err)

	planner := migration.NewPlanner(nil)
	mp, err := planner.Plan("acme", g1, g2, migration.Overrides{})
	require.NoError(t, err)
	require.NoError(t, mp.Approve())
	require.NoError(t, mp.Deploy())
	require.NoError(t, plans.Put(mp))

	sess, err := store.Create("acme", "sess-1")
	require.NoError(t, err)
	sess.ActivateScenario("onboarding", "collect_name", 1)
	sess.RefreshChecksum()
	sess.PendingMigration = &core.MigrationRef{ScenarioID: "onboarding"}
	require.NoError(t, store.Save(sess, 0))

	e := New(func(o *Options) {
		o.ArchiveStore = arch
		o.PlanStore = plans
		o.SessionStore = store
		o.Audit = recorder
	})

	plan, after, err := e.ProcessTurn(context.Background(), "acme", "sess-1",
		core.NavigationSignal{Kind: core.SignalUnknown}, ranked("r1"))
	require.NoError(t, err)

	entry := after.ActiveScenario("onboarding")
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, "collect_name", entry.StepID)
	assert.Nil(t, after.PendingMigration)
	assert.Equal(t, core.ResponseAsk, plan.ResponseType)

	assert.Len(t, recorder.ByType(core.AuditSessionMigrated), 1)
	assert.Len(t, recorder.ByType(core.AuditTurnProcessed), 1)
}

// brokenPlanStore fails chain resolution to simulate an unreadable plan
// repository.
type brokenPlanStore struct {
	core.PlanStore
}

func (brokenPlanStore) DeployedChain(tenantID, scenarioID string, fromVersion int) ([]*core.MigrationPlan, error) {
	return nil, assert.AnError
}

func TestEngine_ProcessTurn_MigrationFailureDegradesToUnmigratedTurn(t *testing.T) {
	arch := fixtureArchive(t, 1, 2)
	store := session.NewInMemoryStore()

	sess, err := store.Create("acme", "sess-1")
	require.NoError(t, err)
	sess.ActivateScenario("onboarding", "collect_name", 1)
	sess.RefreshChecksum()
	sess.PendingMigration = &core.MigrationRef{ScenarioID: "onboarding"}
	require.NoError(t, store.Save(sess, 0))

	e := New(func(o *Options) {
		o.ArchiveStore = arch
		o.PlanStore = brokenPlanStore{}
		o.SessionStore = store
	})

	plan, after, err := e.ProcessTurn(context.Background(), "acme", "sess-1",
		core.NavigationSignal{Kind: core.SignalUnknown}, ranked("r1"))
	require.NoError(t, err)

	// Turn completed against the old version; the flag survives for retry.
	assert.Equal(t, core.ResponseAsk, plan.ResponseType)
	assert.Equal(t, 1, after.ActiveScenario("onboarding").Version)
	require.NotNil(t, after.PendingMigration)
	assert.Equal(t, "onboarding", after.PendingMigration.ScenarioID)
}

func TestEngine_WithAdvisoryLock(t *testing.T) {
	e := New(func(o *Options) {
		o.ArchiveStore = fixtureArchive(t, 1)
	})

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- e.WithAdvisoryLock("exec-1", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// Same execution id is rejected while held.
	err := e.WithAdvisoryLock("exec-1", func() error { return nil })
	assert.ErrorIs(t, err, core.ErrSessionBusy)

	// Advisory locks do not interfere with session turn locks.
	_, _, err = e.ProcessTurn(context.Background(), "acme", "sess-1", startSignal(), ranked("r1"))
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	require.NoError(t, e.WithAdvisoryLock("exec-1", func() error { return nil }))
}
