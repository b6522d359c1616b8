// Package bridge connects the engine to the host process that owns notes,
// tasks and habits.
//
// The host speaks JSON-RPC 2.0 over a WebSocket. Client implements every
// resolve contract by calling the host; Handler is the server half, exposing
// any resolve.Collaborators to a client and pushing host events
// (note.saved, note.property.changed, habit.entry.logged) as notifications.
//
// Calls carry a per-call timeout and run behind a circuit breaker, so a host
// that stops answering fails fast instead of leaving widgets loading.
// Identical in-flight reads share one round trip.
package bridge
