// Package testutil contains fluent builders used across tests to reduce
// boilerplate when constructing core model objects (sessions, scenario
// graphs, migration plans). These helpers are intentionally minimal and are
// not intended for production usage.
package testutil
