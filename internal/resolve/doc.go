// Package resolve defines the contracts between the decoration engine and the
// collaborators that own data: query execution, habit tracking, note and media
// resolution, mutations, navigation and document edits.
//
// The engine only requests, caches and renders. Implementations live
// elsewhere: internal/bridge talks to a host process, internal/vault reads a
// directory of notes, and Memory serves tests and demos.
package resolve
