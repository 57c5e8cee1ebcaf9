// Package audit implements async dispatch of session-synchronizer events: mounts,
// unmounts, navigations, and every recovered failure (provider unavailable,
// malformed stream events).
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, mount, source, session, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the mount loop does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on synchronizer state.
//   - Import sessionsync or any sibling internal package.
package audit
