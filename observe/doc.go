// Package observe provides observability primitives for catalog and offline
// cache operations.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The catalog controller and the offline worker run
// their operations through a Middleware built from an Observer.
package observe
