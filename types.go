package sessionsync

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/sessionsync/internal/audit"
	"github.com/MrEthical07/sessionsync/session"
)

// State is a read-only snapshot of a mount's session state. Session is nil when the
// user is signed out. Once Loading is false it stays false for the life of the mount.
type State struct {
	Loading bool
	Session *session.Session
}

// Authenticated reports whether the snapshot is resolved and carries a session.
func (s State) Authenticated() bool {
	return !s.Loading && s.Session != nil
}

// Category is the coarse classification used to detect navigation transitions.
type Category uint8

const (
	// CategoryUnknown is the category before anything has been committed.
	CategoryUnknown Category = iota
	CategoryAuthenticated
	CategoryUnauthenticated
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryAuthenticated:
		return "authenticated"
	case CategoryUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// CategoryOf classifies a committed session value. Two different sessions (for example
// before and after a token refresh) share a category.
func CategoryOf(sess *session.Session) Category {
	if sess == nil {
		return CategoryUnauthenticated
	}
	return CategoryAuthenticated
}

// Route is a navigation target understood by the application's Navigator.
type Route string

// Routes holds the two entry points the synchronizer navigates to.
type Routes struct {
	AuthenticatedEntry Route
	SignInEntry        Route
}

// Navigator performs navigation side effects. It is called from the mount loop, one call
// at a time, and may call Mount.Unmount.
type Navigator interface {
	Navigate(ctx context.Context, route Route) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route Route) error

// Navigate calls f(ctx, route).
func (f NavigatorFunc) Navigate(ctx context.Context, route Route) error {
	return f(ctx, route)
}

// Source identifies which component wrote a committed value.
type Source uint8

const (
	SourceNone Source = iota
	SourceBootstrap
	SourceListener
)

// String returns the source name used in logs and audit events.
func (s Source) String() string {
	switch s {
	case SourceBootstrap:
		return "bootstrap"
	case SourceListener:
		return "listener"
	default:
		return "none"
	}
}

// AuditEvent is the record delivered to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events asynchronously from the synchronizer.
type AuditSink = internalaudit.Sink

// NoOpSink discards every audit event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly useful in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes audit events to a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a sink that buffers up to buffer events on a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that logs each event through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

const (
	auditEventMount            = "mount"
	auditEventUnmount          = "unmount"
	auditEventBootstrapFailed  = "bootstrap_failed"
	auditEventSubscribeFailed  = "subscribe_failed"
	auditEventMalformedEvent   = "malformed_event"
	auditEventNavigation       = "navigation"
	auditEventNavigationFailed = "navigation_failed"
	auditEventStreamClosed     = "stream_closed"
)
