package core

// Audit event types emitted by the engine.
const (
	// AuditSessionMigrated records a completed just-in-time migration.
	AuditSessionMigrated = "session_migrated"
	// AuditTurnProcessed records a completed turn and its response plan.
	AuditTurnProcessed = "turn_processed"
)

// AuditRecorder receives engine events fire-and-forget: implementations must
// never block the turn, and a failure to record must not fail the turn.
type AuditRecorder interface {
	Record(eventType string, payload map[string]any)
}

// NoOpAuditRecorder discards all events.
type NoOpAuditRecorder struct{}

// Record discards the event.
func (NoOpAuditRecorder) Record(string, map[string]any) {}
