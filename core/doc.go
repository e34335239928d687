// Package core provides the foundational domain types and interfaces of
// ScenarioMesh. It defines the core abstractions for:
//
//   - ScenarioGraph (immutable, versioned step-based conversation flows)
//   - Sessions (the single mutable aggregate advanced one turn at a time)
//   - MigrationPlan (declared transformations between scenario versions)
//   - Contributions / ResponsePlan (per-turn scenario output and its merge)
//   - Pluggable stores for sessions, scenario archives and migration plans
//
// The package intentionally keeps implementation concerns (persistence,
// migration execution, turn orchestration) out of scope, exposing small
// interfaces so custom backends and policies can be supplied.
package core
