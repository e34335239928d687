package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convoworks/scenariomesh/core"
)

// lockTable hands out exclusive per-key locks. Entries are reference counted
// and removed once released by every waiter, so the table does not grow with
// the number of sessions ever seen.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[string]*lockEntry{}}
}

func (t *lockTable) entry(key string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		t.locks[key] = e
	}
	e.refs++
	return e
}

func (t *lockTable) unref(key string, e *lockEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
}

// acquire takes the exclusive lock for key under the given policy. Waiting
// is bounded by timeout and by ctx; a lock that was never granted leaves no
// table entry behind. The returned release function is idempotent.
func (t *lockTable) acquire(ctx context.Context, key string, policy LockPolicy, timeout time.Duration) (func(), error) {
	e := t.entry(key)

	switch policy {
	case LockPolicyReject:
		select {
		case e.sem <- struct{}{}:
		default:
			t.unref(key, e)
			return nil, fmt.Errorf("lock %s: %w", key, core.ErrSessionBusy)
		}
	default:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case e.sem <- struct{}{}:
		case <-timer.C:
			t.unref(key, e)
			return nil, fmt.Errorf("lock %s after %s: %w", key, timeout, core.ErrLockTimeout)
		case <-ctx.Done():
			t.unref(key, e)
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			t.unref(key, e)
		})
	}, nil
}
