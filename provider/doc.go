// Package provider defines the identity-provider contract consumed by the session
// synchronizer and ships a Redis-backed implementation of it.
//
// # Contract
//
//   - [Client.FetchSession] is the one-shot lookup of a session persisted by a previous run.
//   - [Client.SubscribeAuthChanges] opens the provider's live auth-change stream. Events
//     arrive on [Subscription.Events] in delivery order as an [Event] sum type:
//     Resolved(session or nil) or Failed(err).
//   - [Subscription.Unsubscribe] is idempotent.
//
// # Redis implementation
//
// [Redis] stores the device session through session.Store and publishes auth changes on
// a per-device pub/sub channel as JSON messages carrying a signed access token. Tokens
// that fail verification surface as [ErrMalformedEvent].
//
// # What this package must NOT do
//
//   - Import sessionsync (the synchronizer depends on this package, not the reverse).
//   - Drop, reorder, or coalesce stream messages.
package provider
