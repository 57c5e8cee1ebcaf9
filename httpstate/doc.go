// Package httpstate exposes a mount's session state over HTTP.
//
// [Handler] serves the current snapshot as JSON. [RequireAuthenticated] gates a handler
// on the snapshot: 503 while the mount is still loading, a redirect to the sign-in route
// when signed out, and otherwise the session is placed in the request context.
//
// Access tokens are never written to responses.
package httpstate
