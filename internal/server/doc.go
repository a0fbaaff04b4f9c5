// Package server implements the relay's connection lifecycle and group
// broadcast engine: authenticated WebSocket admission, per-session state
// machines, group-scoped fan-out, liveness sweeping, and forced eviction.
//
// The implementation is organized into specialized files for configuration,
// hub management, client sessions, the health monitor, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project
// grows.
package server
