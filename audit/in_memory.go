// Package audit provides a volatile AuditRecorder implementation. The engine
// treats audit as fire-and-forget: recording failures never fail a turn.
package audit

import (
	"sync"
	"time"

	"github.com/convoworks/scenariomesh/core"
)

// Event is one recorded audit entry.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// InMemoryRecorder collects events in process memory. Safe for concurrent
// use; intended for tests and demos.
type InMemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemoryRecorder constructs an empty recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record appends an event. It never fails.
func (r *InMemoryRecorder) Record(eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ID:        core.NewID(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Events returns a copy of everything recorded so far.
func (r *InMemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns recorded events of one type.
func (r *InMemoryRecorder) ByType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
