// Package session provides the client-side [Session] handle and its Redis-backed
// persistence for a single device.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact versioned binary blob. The encoder is
// append-only: new versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// verify tokens, decide routing, or arbitrate between session sources. Those
// responsibilities belong to the provider and the synchronizer.
//
// # What this package must NOT do
//
//   - Import sessionsync, jwt, or provider (no upward imports).
//   - Interpret the access token it carries.
package session
