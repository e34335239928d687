// Package migration implements just-in-time session migration: planning the
// transformation between two published scenario versions, composing chains of
// deployed plans across version gaps, filling variables a newer version
// requires but an old session never collected, and applying the whole
// transformation atomically to a live session at turn start.
package migration
